package source

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/sam"
)

// CatalogAdapter fetches contract opportunities from SAM.gov. The page token
// is the decimal search offset. Results are queried state-wide with the
// configured posted-date window and filtered to the unit's locality by place
// of performance.
type CatalogAdapter struct {
	client sam.Client
	cfg    config.SAMConfig
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewCatalogAdapter builds the SAM.gov adapter.
func NewCatalogAdapter(client sam.Client, cfg config.SAMConfig) *CatalogAdapter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(string(model.SourceCatalog), "search")
	return &CatalogAdapter{
		client: client,
		cfg:    cfg,
		retry:  retry,
		now:    time.Now,
	}
}

func (a *CatalogAdapter) Kind() model.SourceKind {
	return model.SourceCatalog
}

func (a *CatalogAdapter) FetchPage(ctx context.Context, info UnitInfo, pageToken string) (*Page, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: bad page token %q", pageToken)
		}
	}

	now := a.now().UTC()
	q := sam.SearchQuery{
		PostedFrom: now.AddDate(0, 0, -a.cfg.PostedWindowDays).Format("01/02/2006"),
		PostedTo:   now.Format("01/02/2006"),
		State:      a.cfg.State,
		NAICS:      "", // tiering happens downstream; the catalog query stays broad
		Limit:      a.cfg.PageSize,
		Offset:     offset,
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*sam.SearchResponse, error) {
		resp, err := a.client.Search(ctx, q)
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
			return nil, &resilience.SourceUnavailableError{Source: model.SourceCatalog, Err: err}
		}
		return nil, eris.Wrap(err, "catalog: fetch page")
	}

	page := &Page{}
	for i := range resp.Opportunities {
		opp := &resp.Opportunities[i]
		if !matchesLocality(opp, info.Locality) {
			continue
		}
		page.Results = append(page.Results, RawResult{
			Source:  model.SourceCatalog,
			Catalog: opp,
		})
	}

	next := offset + q.Limit
	if next < resp.TotalRecords {
		page.NextToken = strconv.Itoa(next)
	}
	return page, nil
}

// mapError classifies an upstream failure: authorization/quota 4xx surfaces
// immediately as SourceRejected, retryable server conditions are marked
// transient for the bounded retry loop.
func (a *CatalogAdapter) mapError(err error) error {
	var apiErr *sam.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			return &resilience.SourceRejectedError{
				Source:     model.SourceCatalog,
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

// matchesLocality keeps opportunities whose place of performance names the
// unit's locality. The catalog has no per-city filter, so the narrowing is
// done here.
func matchesLocality(opp *sam.Opportunity, locality string) bool {
	city := strings.ToLower(strings.TrimSpace(opp.PlaceOfPerformance.City.Name))
	if city == "" {
		return false
	}
	want := strings.ToLower(locality)
	return strings.Contains(want, city) || strings.Contains(city, want)
}
