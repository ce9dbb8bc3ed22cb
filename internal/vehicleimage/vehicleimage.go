// Package vehicleimage finds a representative picture of a vehicle model.
package vehicleimage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/catalog"
)

const (
	defaultBaseURL = "https://en.wikipedia.org/wiki/"
	userAgent      = "autogenius/1.0 (vehicle diagnosis assistant)"
)

// Finder looks up vehicle images on Wikipedia article pages through their
// og:image metadata. Results, including misses, are cached per model.
type Finder struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string]string
}

// New creates a Finder. An empty baseURL uses English Wikipedia.
func New(baseURL string, logger *zap.Logger) *Finder {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
		cache:   make(map[string]string),
	}
}

// Find returns an image URL for v, or "" when none is found. Errors are
// logged and never returned.
func (f *Finder) Find(ctx context.Context, v catalog.Vehicle) string {
	key := strings.ToLower(v.Manufacturer + " " + v.Model)

	f.mu.Lock()
	cached, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		return cached
	}

	var img string
	for _, title := range articleTitles(v) {
		var err error
		img, err = f.lookup(ctx, title)
		if err != nil {
			f.logger.Debug("vehicle image lookup failed", zap.String("article", title), zap.Error(err))
			continue
		}
		if img != "" {
			break
		}
	}

	f.mu.Lock()
	f.cache[key] = img
	f.mu.Unlock()
	return img
}

// articleTitles lists the candidate article names, most specific first.
func articleTitles(v catalog.Vehicle) []string {
	join := func(parts ...string) string {
		return strings.ReplaceAll(strings.Join(parts, " "), " ", "_")
	}
	return []string{
		join(v.Manufacturer, v.Model),
		join(v.Model),
	}
}

func (f *Finder) lookup(ctx context.Context, title string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+url.PathEscape(title), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing article: %w", err)
	}
	img, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	if strings.HasPrefix(img, "//") {
		img = "https:" + img
	}
	return img, nil
}
