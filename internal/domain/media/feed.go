package media

import (
	"context"
	"fmt"
	"strings"
)

// FeedItem is the public projection of a MediaRecord served to map clients.
type FeedItem struct {
	ID           string  `json:"id"`
	Viewer       string  `json:"viewer"`
	Drone        string  `json:"drone"`
	Metadata     string  `json:"metadata"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	ActualURL    string  `json:"actualUrl"`
}

// FeedService projects persisted records into feed items with absolute
// object URLs.
type FeedService struct {
	repo    Repository
	baseURL string
}

func NewFeedService(repo Repository, baseURL string) *FeedService {
	return &FeedService{repo: repo, baseURL: strings.TrimRight(baseURL, "/")}
}

// BuildFeed returns all records as feed items, newest first (the repository
// sorts by capture time descending).
func (s *FeedService) BuildFeed(ctx context.Context) ([]FeedItem, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]FeedItem, 0, len(records))
	for i := range records {
		items = append(items, s.project(&records[i]))
	}
	return items, nil
}

func (s *FeedService) project(rec *MediaRecord) FeedItem {
	actual := fmt.Sprintf("%s/%s/%s.webp", s.baseURL, rec.Name, rec.Name)
	if rec.Type == TypePano {
		actual = fmt.Sprintf("%s/%s/tiles", s.baseURL, rec.Name)
	}
	return FeedItem{
		ID:           rec.Name,
		Viewer:       rec.Type.Viewer(),
		Drone:        rec.Drone,
		Metadata:     formatMetadata(rec),
		Latitude:     rec.Latitude,
		Longitude:    rec.Longitude,
		ThumbnailURL: fmt.Sprintf("%s/%s/thumbnail.webp", s.baseURL, rec.Name),
		ActualURL:    actual,
	}
}

// formatMetadata renders the human-readable popup text. Fields the extractor
// could not resolve are left out rather than shown as placeholders.
func formatMetadata(rec *MediaRecord) string {
	var lines []string
	if !rec.DateTime.IsZero() {
		lines = append(lines, rec.DateTime.Format("02.01.2006 15:04"))
	}
	var place []string
	for _, part := range []*string{rec.Road, rec.PostalCode, rec.Location, rec.Region, rec.Country} {
		if part != nil && *part != "" {
			place = append(place, *part)
		}
	}
	if len(place) > 0 {
		lines = append(lines, strings.Join(place, ", "))
	}
	if rec.Altitude != nil {
		lines = append(lines, fmt.Sprintf("%.1f m", *rec.Altitude))
	}
	if rec.Author != "" {
		lines = append(lines, "by "+rec.Author)
	}
	return strings.Join(lines, "\n")
}
