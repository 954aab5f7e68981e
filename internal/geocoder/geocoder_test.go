package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParsesBestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "12 Baker Street, London", r.URL.Query().Get("q"))
		assert.Equal(t, "savor-test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"display_name":"12, Baker Street, London, UK","lat":"51.5237","lon":"-0.1585"}]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "savor-test", srv.Client())
	loc, err := client.Resolve(context.Background(), "12 Baker Street, London")
	require.NoError(t, err)

	assert.Equal(t, "12, Baker Street, London, UK", loc.FormattedAddress)
	assert.InDelta(t, 51.5237, loc.Lat, 1e-6)
	assert.InDelta(t, -0.1585, loc.Lng, 1e-6)
}

func TestResolveNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "savor-test", srv.Client())
	_, err := client.Resolve(context.Background(), "nowhere at all")
	assert.ErrorContains(t, err, "no match")
}

func TestResolveEmptyAddress(t *testing.T) {
	client := NewHTTPClient("http://localhost", "savor-test", nil)
	_, err := client.Resolve(context.Background(), "   ")
	assert.ErrorContains(t, err, "address is required")
}

func TestResolveUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "savor-test", srv.Client())
	_, err := client.Resolve(context.Background(), "12 Baker Street")
	assert.ErrorContains(t, err, "unexpected status 503")
}
