package media

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aeroview/aeroview-api/internal/pkg/response"
)

const feedCacheKey = "feed:media"

// Handler serves the read-only media feed.
type Handler struct {
	feed            *FeedService
	cache           *redis.Client // nil disables caching
	cacheTTL        time.Duration
	invalidateToken string
}

// NewHandler creates the feed handler. A nil redis client disables caching;
// an empty token disables the invalidate endpoint.
func NewHandler(feed *FeedService, cache *redis.Client, cacheTTL time.Duration, invalidateToken string) *Handler {
	return &Handler{
		feed:            feed,
		cache:           cache,
		cacheTTL:        cacheTTL,
		invalidateToken: invalidateToken,
	}
}

// List handles GET /api/media
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, feedCacheKey).Bytes(); err == nil {
			response.OK(w, json.RawMessage(cached))
			return
		} else if err != redis.Nil {
			log.Warn().Err(err).Msg("Feed cache read failed, falling back to store")
		}
	}

	items, err := h.feed.BuildFeed(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build media feed")
		response.InternalError(w)
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(items); err == nil {
			if err := h.cache.Set(ctx, feedCacheKey, payload, h.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("Feed cache write failed")
			}
		}
	}

	response.OK(w, items)
}

// InvalidateCache handles POST /api/cache/invalidate
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.invalidateToken == "" {
		response.NotFound(w, "Cache invalidation is not configured")
		return
	}
	token := r.Header.Get("X-Invalidate-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.invalidateToken)) != 1 {
		response.Unauthorized(w, "Invalid invalidation token")
		return
	}

	if h.cache != nil {
		if err := h.cache.Del(r.Context(), feedCacheKey).Err(); err != nil {
			log.Error().Err(err).Msg("Failed to drop feed cache key")
			response.InternalError(w)
			return
		}
	}
	log.Info().Msg("Feed cache invalidated")
	response.NoContent(w)
}
