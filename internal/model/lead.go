package model

import "time"

// SourceKind identifies which external data source produced a record.
type SourceKind string

const (
	// SourceCatalog is the SAM.gov contract-opportunity catalog.
	SourceCatalog SourceKind = "catalog"
	// SourcePlaces is the Google Places search/geocoding service.
	SourcePlaces SourceKind = "places"
)

// SourceKinds lists all source kinds in deterministic plan order.
var SourceKinds = []SourceKind{SourceCatalog, SourcePlaces}

// Category buckets a lead by what kind of prospect it is.
type Category string

const (
	CategoryContract           Category = "contract"
	CategoryCommercialProperty Category = "commercial_property"
	CategoryPropertyManager    Category = "property_manager"
	CategoryAviationFacility   Category = "aviation_facility"
)

// Lead is the canonical record shape shared by both sources. IdentityKey is
// the sole dedup/upsert key: one stored lead per key, FirstSeenAt and
// IdentityKey never change after creation.
type Lead struct {
	IdentityKey string     `json:"identity_key"`
	DisplayName string     `json:"display_name"`
	Locality    string     `json:"locality"`
	Region      string     `json:"region"`
	Category    Category   `json:"category"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	Website     string     `json:"website,omitempty"`
	Source      SourceKind `json:"source"`
	SourceRef   string     `json:"source_ref"`
	Tier        int        `json:"tier"`
	Rating      float64    `json:"rating,omitempty"`
	HasWebsite  bool       `json:"has_website"`
	NAICSCode   string     `json:"naics_code,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
}

// Touched reports whether any mutable descriptive field differs between the
// stored lead and a re-observation. IdentityKey and FirstSeenAt are excluded;
// LastSeenAt alone does not make a lead dirty.
func (l Lead) Touched(obs Lead) bool {
	return l.DisplayName != obs.DisplayName ||
		l.Phone != obs.Phone ||
		l.Address != obs.Address ||
		l.Website != obs.Website ||
		l.Tier != obs.Tier ||
		l.Category != obs.Category ||
		l.Rating != obs.Rating ||
		l.HasWebsite != obs.HasWebsite ||
		l.NAICSCode != obs.NAICSCode ||
		l.Notes != obs.Notes
}
