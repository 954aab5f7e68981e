// Package geocoder resolves free-form addresses into coordinates through a
// Nominatim-compatible search endpoint.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 8 * time.Second

type Location struct {
	FormattedAddress string
	Lat              float64
	Lng              float64
}

type Client interface {
	Resolve(ctx context.Context, address string) (*Location, error)
}

type HTTPClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewHTTPClient builds a geocoding client. userAgent identifies the caller to
// the upstream service, which most public instances require.
func NewHTTPClient(baseURL, userAgent string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Resolve geocodes one address and returns the best match.
func (c *HTTPClient) Resolve(ctx context.Context, address string) (*Location, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("geocode response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no match for address %q", trimmed)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode response: bad latitude %q", results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode response: bad longitude %q", results[0].Lon)
	}

	return &Location{
		FormattedAddress: results[0].DisplayName,
		Lat:              lat,
		Lng:              lng,
	}, nil
}
