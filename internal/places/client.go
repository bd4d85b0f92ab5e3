// Package places resolves address text and coordinates through an external
// geocoding API. Lookups are read-through cached in Redis so repeated
// autocomplete keystrokes and detail fetches do not burn API quota; a cache
// outage silently degrades to direct API calls.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = time.Hour

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Details is the resolved location for a place.
type Details struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// Client calls the geocoding API with an optional Redis cache in front.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *redis.Client
	logger  *slog.Logger
}

// NewClient constructs a places client. cache may be nil to disable caching.
func NewClient(baseURL, apiKey string, cache *redis.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		logger:  logger,
	}
}

// Autocomplete returns suggestions for a partial address query.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]Suggestion, error) {
	if query == "" {
		return nil, nil
	}

	cacheKey := "places:autocomplete:" + query
	var suggestions []Suggestion
	if c.cached(ctx, cacheKey, &suggestions) {
		return suggestions, nil
	}

	params := url.Values{}
	params.Set("input", query)

	var decoded struct {
		Predictions []struct {
			PlaceID     string `json:"place_id"`
			Description string `json:"description"`
		} `json:"predictions"`
	}
	if err := c.call(ctx, "/autocomplete/json", params, &decoded); err != nil {
		return nil, err
	}

	suggestions = make([]Suggestion, 0, len(decoded.Predictions))
	for _, p := range decoded.Predictions {
		suggestions = append(suggestions, Suggestion{PlaceID: p.PlaceID, Description: p.Description})
	}

	c.store(ctx, cacheKey, suggestions)
	return suggestions, nil
}

// PlaceDetails resolves a place ID to its address and coordinates.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (Details, error) {
	if placeID == "" {
		return Details{}, fmt.Errorf("places: place id is required")
	}

	cacheKey := "places:details:" + placeID
	var details Details
	if c.cached(ctx, cacheKey, &details) {
		return details, nil
	}

	params := url.Values{}
	params.Set("place_id", placeID)

	var decoded struct {
		Result struct {
			PlaceID          string `json:"place_id"`
			Name             string `json:"name"`
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"result"`
	}
	if err := c.call(ctx, "/details/json", params, &decoded); err != nil {
		return Details{}, err
	}

	details = Details{
		PlaceID:          decoded.Result.PlaceID,
		Name:             decoded.Result.Name,
		FormattedAddress: decoded.Result.FormattedAddress,
		Latitude:         decoded.Result.Geometry.Location.Lat,
		Longitude:        decoded.Result.Geometry.Location.Lng,
	}

	c.store(ctx, cacheKey, details)
	return details, nil
}

// ReverseGeocode resolves coordinates to the nearest formatted address.
func (c *Client) ReverseGeocode(ctx context.Context, latitude, longitude float64) (Details, error) {
	latValue := strconv.FormatFloat(latitude, 'f', 6, 64)
	lngValue := strconv.FormatFloat(longitude, 'f', 6, 64)

	cacheKey := "places:reverse:" + latValue + "," + lngValue
	var details Details
	if c.cached(ctx, cacheKey, &details) {
		return details, nil
	}

	params := url.Values{}
	params.Set("latlng", latValue+","+lngValue)

	var decoded struct {
		Results []struct {
			PlaceID          string `json:"place_id"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	if err := c.call(ctx, "/geocode/json", params, &decoded); err != nil {
		return Details{}, err
	}
	if len(decoded.Results) == 0 {
		return Details{}, fmt.Errorf("places: no address at %s,%s", latValue, lngValue)
	}

	details = Details{
		PlaceID:          decoded.Results[0].PlaceID,
		FormattedAddress: decoded.Results[0].FormattedAddress,
		Latitude:         latitude,
		Longitude:        longitude,
	}

	c.store(ctx, cacheKey, details)
	return details, nil
}

func (c *Client) call(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("places: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("places: call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places: api returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("places: decode response: %w", err)
	}
	return nil
}

func (c *Client) cached(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	payload, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.DebugContext(ctx, "places cache read failed", "error", err)
		}
		return false
	}
	return json.Unmarshal(payload, out) == nil
}

func (c *Client) store(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, payload, cacheTTL).Err(); err != nil {
		c.logger.DebugContext(ctx, "places cache write failed", "error", err)
	}
}
