package sam

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

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantAPIErr bool
		wantStatus int
		wantTotal  int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/search", r.URL.Path)
				q := r.URL.Query()
				assert.Equal(t, "test-api-key", q.Get("api_key"))
				assert.Equal(t, "06/01/2026", q.Get("postedFrom"))
				assert.Equal(t, "08/30/2026", q.Get("postedTo"))
				assert.Equal(t, "VA", q.Get("state"))
				assert.Equal(t, "50", q.Get("limit"))
				assert.Equal(t, "100", q.Get("offset"))

				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(SearchResponse{ //nolint:errcheck
					TotalRecords: 2,
					Opportunities: []Opportunity{
						{NoticeID: "n1", Title: "Lot Repaving"},
						{NoticeID: "n2", Title: "Striping"},
					},
				})
			},
			wantTotal: 2,
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"API_KEY_INVALID"}`)) //nolint:errcheck
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 401,
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"OVER_RATE_LIMIT"}`)) //nolint:errcheck
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 429,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{not json`)) //nolint:errcheck
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			resp, err := c.Search(context.Background(), SearchQuery{
				PostedFrom: "06/01/2026",
				PostedTo:   "08/30/2026",
				State:      "VA",
				Limit:      50,
				Offset:     100,
			})

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantAPIErr {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, resp.TotalRecords)
			assert.Len(t, resp.Opportunities, tt.wantTotal)
		})
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`)) //nolint:errcheck
	})

	_, err := c.Search(context.Background(), SearchQuery{})
	require.NoError(t, err)
}

func TestSearch_ParsesNestedFields(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"totalRecords": 1,
			"opportunitiesData": [{
				"noticeId": "n1",
				"title": "Apron Repair",
				"naicsCode": "238990",
				"responseDeadLine": "2026-09-15",
				"placeOfPerformance": {"city": {"name": "Richmond"}, "state": {"code": "VA"}, "zip": "23220"},
				"pointOfContact": [{"fullName": "Pat Doe", "phone": "804-555-0100"}]
			}]
		}`))
	})

	resp, err := c.Search(context.Background(), SearchQuery{})
	require.NoError(t, err)
	require.Len(t, resp.Opportunities, 1)
	opp := resp.Opportunities[0]
	assert.Equal(t, "238990", opp.NAICSCode)
	assert.Equal(t, "2026-09-15", opp.ResponseDeadline)
	assert.Equal(t, "Richmond", opp.PlaceOfPerformance.City.Name)
	assert.Equal(t, "804-555-0100", opp.PointOfContact[0].Phone)
}
