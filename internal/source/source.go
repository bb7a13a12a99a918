// Package source hides each external data source's wire format and pagination
// quirks behind one fetch-page contract so the orchestrator stays
// source-agnostic.
package source

import (
	"context"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/places"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/sam"
)

// RawResult is one source-specific record, owned transiently by the pipeline
// and discarded after normalization. Exactly one of Catalog or Place is set,
// matching Source.
type RawResult struct {
	Source  model.SourceKind
	Catalog *sam.Opportunity
	Place   *places.Place
}

// Page is one fetched page for a plan unit. An empty NextToken means the
// unit's result stream is exhausted.
type Page struct {
	Results   []RawResult
	NextToken string
}

// UnitInfo carries a plan unit plus the display names adapters need for
// query construction.
type UnitInfo struct {
	Unit     model.PlanUnit
	Locality string
	Region   string
}

// Adapter is the uniform fetch-page contract both sources implement.
// Implementations own their authentication, query construction, and cursor
// semantics. Transient failures are retried internally up to a fixed bound
// before surfacing as SourceUnavailable; authorization/quota rejections
// surface immediately as SourceRejected.
type Adapter interface {
	Kind() model.SourceKind
	FetchPage(ctx context.Context, info UnitInfo, pageToken string) (*Page, error)
}

// Reserver grants quota permits. Adapters that issue secondary upstream calls
// (the places details lookup) reserve those against the same per-source
// budget the orchestrator charges page fetches to.
type Reserver interface {
	Reserve(ctx context.Context, source model.SourceKind, n int) error
}
