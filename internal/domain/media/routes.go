package media

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the media feed router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/media", h.List)
	r.Post("/cache/invalidate", h.InvalidateCache)

	return r
}
