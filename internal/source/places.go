package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/places"
)

// PlacesAdapter fetches businesses from Google Places, one text search per
// configured term per locality. The page token is "termIndex:upstreamToken",
// so one unit's stream walks every term's pages in order before finishing.
// Details lookups for phone/website are charged to the same quota bucket via
// the Reserver.
type PlacesAdapter struct {
	client   places.Client
	cfg      config.PlacesConfig
	reserver Reserver
	retry    resilience.RetryConfig
}

// NewPlacesAdapter builds the Google Places adapter. reserver may be nil to
// disable quota accounting for details lookups (tests only).
func NewPlacesAdapter(client places.Client, cfg config.PlacesConfig, reserver Reserver) *PlacesAdapter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(string(model.SourcePlaces), "search")
	return &PlacesAdapter{
		client:   client,
		cfg:      cfg,
		reserver: reserver,
		retry:    retry,
	}
}

func (a *PlacesAdapter) Kind() model.SourceKind {
	return model.SourcePlaces
}

func (a *PlacesAdapter) FetchPage(ctx context.Context, info UnitInfo, pageToken string) (*Page, error) {
	termIdx, upstream, err := splitToken(pageToken)
	if err != nil {
		return nil, err
	}
	if termIdx >= len(a.cfg.SearchTerms) {
		return &Page{}, nil
	}

	query := fmt.Sprintf("%s in %s, Virginia", a.cfg.SearchTerms[termIdx], info.Locality)
	req := places.SearchRequest{TextQuery: query, PageToken: upstream}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*places.SearchResponse, error) {
		resp, err := a.client.SearchText(ctx, req)
		if err != nil {
			return nil, a.mapError(err)
		}
		return resp, nil
	})
	if err != nil {
		if resilience.IsSourceRejected(err) {
			return nil, err
		}
		if resilience.IsTransient(err) {
			return nil, &resilience.SourceUnavailableError{Source: model.SourcePlaces, Err: err}
		}
		return nil, eris.Wrap(err, "places: fetch page")
	}

	page := &Page{}
	for i := range resp.Places {
		p := resp.Places[i]
		if a.cfg.DetailsLookup && needsDetails(&p) {
			if err := a.enrich(ctx, &p); err != nil {
				return nil, err
			}
		}
		page.Results = append(page.Results, RawResult{
			Source: model.SourcePlaces,
			Place:  &p,
		})
	}

	switch {
	case resp.NextPageToken != "":
		page.NextToken = joinToken(termIdx, resp.NextPageToken)
	case termIdx+1 < len(a.cfg.SearchTerms):
		page.NextToken = joinToken(termIdx+1, "")
	}
	return page, nil
}

// enrich fills missing contact fields and coordinates with a details lookup.
// Each lookup is one quota unit. A details failure is non-fatal for the
// record: the search result alone is still usable.
func (a *PlacesAdapter) enrich(ctx context.Context, p *places.Place) error {
	if a.reserver != nil {
		if err := a.reserver.Reserve(ctx, model.SourcePlaces, 1); err != nil {
			return err
		}
	}

	detail, err := a.client.Details(ctx, p.ID)
	if err != nil {
		if rejected := a.mapError(err); resilience.IsSourceRejected(rejected) {
			return rejected
		}
		zap.L().Warn("places details lookup failed",
			zap.String("place_id", p.ID),
			zap.Error(err),
		)
		return nil
	}

	if p.NationalPhoneNumber == "" {
		p.NationalPhoneNumber = detail.NationalPhoneNumber
	}
	if p.WebsiteURI == "" {
		p.WebsiteURI = detail.WebsiteURI
	}
	if p.Location == nil {
		p.Location = detail.Location
	}
	return nil
}

func (a *PlacesAdapter) mapError(err error) error {
	var apiErr *places.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return &resilience.SourceRejectedError{
				Source:     model.SourcePlaces,
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Body,
			}
		}
		if resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return resilience.NewTransientError(err, apiErr.StatusCode)
		}
	}
	return err
}

func needsDetails(p *places.Place) bool {
	return p.NationalPhoneNumber == "" || p.WebsiteURI == "" || p.Location == nil
}

func splitToken(token string) (int, string, error) {
	if token == "" {
		return 0, "", nil
	}
	idx, rest, ok := strings.Cut(token, ":")
	if !ok {
		return 0, "", eris.Errorf("places: bad page token %q", token)
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return 0, "", eris.Wrapf(err, "places: bad page token %q", token)
	}
	return n, rest, nil
}

func joinToken(termIdx int, upstream string) string {
	return fmt.Sprintf("%d:%s", termIdx, upstream)
}
