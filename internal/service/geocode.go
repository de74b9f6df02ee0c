package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// GeocodeService reverse-geocodes SOS coordinates into a human address for
// the record. This is a caller-side convenience, not a core obligation: a
// lookup failure or timeout degrades to an empty address and the submission
// proceeds with whatever (possibly stale, possibly cached) result is at hand.
type GeocodeService struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	clock      clockwork.Clock

	mu    sync.Mutex
	cache map[string]geocodeEntry
}

type geocodeEntry struct {
	address   string
	fetchedAt time.Time
}

// NewGeocodeService creates the reverse geocoder with a bounded request
// timeout and a short result cache.
func NewGeocodeService(baseURL string, timeout, cacheTTL time.Duration) *GeocodeService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GeocodeService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
		clock:      clockwork.NewRealClock(),
		cache:      make(map[string]geocodeEntry),
	}
}

// SetClock swaps the time source for deterministic cache-expiry tests.
func (s *GeocodeService) SetClock(c clockwork.Clock) {
	s.clock = c
}

// ReverseGeocode returns a display address for the coordinates, or "" when
// the lookup fails. Cached results are served for the cache TTL.
func (s *GeocodeService) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && s.clock.Since(entry.fetchedAt) < s.cacheTTL {
		s.mu.Unlock()
		return entry.address
	}
	s.mu.Unlock()

	address, err := s.fetch(ctx, lat, lon)
	if err != nil {
		log.Printf("[Geocode] Reverse lookup failed for %s: %v", key, err)
		return ""
	}
	if address != "" {
		s.mu.Lock()
		s.cache[key] = geocodeEntry{address: address, fetchedAt: s.clock.Now()}
		s.mu.Unlock()
	}
	return address
}

func (s *GeocodeService) fetch(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{
		"lat":    {fmt.Sprintf("%.6f", lat)},
		"lon":    {fmt.Sprintf("%.6f", lon)},
		"format": {"jsonv2"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode API error: status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return body.DisplayName, nil
}
