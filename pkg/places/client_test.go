package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL))
}

func TestSearchText(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.displayName")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "airport in Fairfax, Virginia", req["textQuery"])
		assert.Equal(t, "tok-1", req["pageToken"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"places": [{
				"id": "p1",
				"displayName": {"text": "Fairfax Airpark"},
				"formattedAddress": "1 Runway Rd, Fairfax, VA",
				"rating": 4.2,
				"types": ["airport"]
			}],
			"nextPageToken": "tok-2"
		}`))
	})

	resp, err := c.SearchText(context.Background(), SearchRequest{
		TextQuery: "airport in Fairfax, Virginia",
		PageToken: "tok-1",
	})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Fairfax Airpark", resp.Places[0].DisplayName.Text)
	assert.Equal(t, 4.2, resp.Places[0].Rating)
	assert.Equal(t, "tok-2", resp.NextPageToken)
}

func TestSearchText_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"status":"PERMISSION_DENIED"}}`)) //nolint:errcheck
	})

	_, err := c.SearchText(context.Background(), SearchRequest{TextQuery: "x"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "PERMISSION_DENIED")
}

func TestDetails(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/places/p1", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "nationalPhoneNumber")

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"id": "p1",
			"displayName": {"text": "Fairfax Airpark"},
			"nationalPhoneNumber": "(703) 555-0100",
			"websiteUri": "https://airpark.example",
			"location": {"latitude": 38.85, "longitude": -77.3}
		}`))
	})

	p, err := c.Details(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "(703) 555-0100", p.NationalPhoneNumber)
	require.NotNil(t, p.Location)
	assert.Equal(t, 38.85, p.Location.Latitude)
}

func TestDetails_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"status":"NOT_FOUND"}}`)) //nolint:errcheck
	})

	_, err := c.Details(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}
