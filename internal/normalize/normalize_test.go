package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/source"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/places"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/sam"
)

var testInfo = source.UnitInfo{
	Unit:     model.PlanUnit{RegionID: "va-1-nova", LocalityID: "fairfax-county", Source: model.SourceCatalog},
	Locality: "Fairfax County",
	Region:   "Northern Virginia",
}

func TestNormalize_Catalog(t *testing.T) {
	n := New()

	opp := &sam.Opportunity{
		NoticeID:         "abc123",
		Title:            "PARKING LOT REPAVING - BUILDING 7",
		NAICSCode:        "238990",
		Type:             "Presolicitation",
		ResponseDeadline: "2026-09-15",
		UILink:           "https://sam.gov/opp/abc123/view",
	}
	opp.PlaceOfPerformance.City.Name = "Fairfax"
	opp.PlaceOfPerformance.State.Code = "VA"
	opp.PlaceOfPerformance.Zip = "22030"
	opp.PointOfContact = []sam.PointOfContact{{Phone: "703-555-0100"}}

	lead, err := n.Normalize(source.RawResult{Source: model.SourceCatalog, Catalog: opp}, testInfo)
	require.NoError(t, err)

	assert.Equal(t, "sam:abc123", lead.IdentityKey)
	assert.Equal(t, "Parking Lot Repaving - Building 7", lead.DisplayName)
	assert.Equal(t, model.CategoryContract, lead.Category)
	assert.Equal(t, "Fairfax County", lead.Locality)
	assert.Equal(t, "238990", lead.NAICSCode)
	assert.Equal(t, "703-555-0100", lead.Phone)
	assert.Equal(t, "Fairfax, VA 22030", lead.Address)
	assert.Equal(t, "Presolicitation; due 2026-09-15", lead.Notes)
	assert.True(t, lead.HasWebsite)
	assert.Equal(t, lead.FirstSeenAt, lead.LastSeenAt)
}

func TestNormalize_CatalogMixedCaseTitleKept(t *testing.T) {
	n := New()
	opp := &sam.Opportunity{NoticeID: "n1", Title: "Sealcoating at Dulles Annex"}

	lead, err := n.Normalize(source.RawResult{Source: model.SourceCatalog, Catalog: opp}, testInfo)
	require.NoError(t, err)
	assert.Equal(t, "Sealcoating at Dulles Annex", lead.DisplayName)
}

func TestNormalize_CatalogWithoutTitleIsMalformed(t *testing.T) {
	n := New()
	opp := &sam.Opportunity{NoticeID: "n2", Title: "   "}

	_, err := n.Normalize(source.RawResult{Source: model.SourceCatalog, Catalog: opp}, testInfo)
	require.Error(t, err)
	assert.True(t, resilience.IsMalformed(err))
}

func TestNormalize_CatalogWithoutNoticeIDFallsBackToNameKey(t *testing.T) {
	n := New()
	opp := &sam.Opportunity{Title: "Runway Crack Sealing"}

	lead, err := n.Normalize(source.RawResult{Source: model.SourceCatalog, Catalog: opp}, testInfo)
	require.NoError(t, err)
	assert.Contains(t, lead.IdentityKey, "name:")

	again, err := n.Normalize(source.RawResult{Source: model.SourceCatalog, Catalog: opp}, testInfo)
	require.NoError(t, err)
	assert.Equal(t, lead.IdentityKey, again.IdentityKey)
}

func TestNormalize_Place(t *testing.T) {
	n := New()

	p := &places.Place{
		ID:                  "ChIJxyz",
		FormattedAddress:    "100 Main St, Fairfax, VA 22030",
		NationalPhoneNumber: "(703) 555-0101",
		WebsiteURI:          "https://example.com",
		Rating:              4.4,
		Types:               []string{"real_estate_agency", "point_of_interest"},
	}
	p.DisplayName.Text = "Main Street Property Management"

	lead, err := n.Normalize(source.RawResult{Source: model.SourcePlaces, Place: p}, testInfo)
	require.NoError(t, err)

	assert.Equal(t, "gplace:ChIJxyz", lead.IdentityKey)
	assert.Equal(t, model.CategoryPropertyManager, lead.Category)
	assert.Equal(t, "(703) 555-0101", lead.Phone)
	assert.Equal(t, 4.4, lead.Rating)
	assert.True(t, lead.HasWebsite)
	assert.Equal(t, "real_estate_agency,point_of_interest", lead.Notes)
}

func TestNormalize_PlaceCategories(t *testing.T) {
	n := New()

	tests := []struct {
		name     string
		place    string
		types    []string
		category model.Category
	}{
		{"airport type", "Leesburg Executive", []string{"airport"}, model.CategoryAviationFacility},
		{"airfield in name", "Orange County Airfield", nil, model.CategoryAviationFacility},
		{"property manager", "Cardinal Property Management LLC", nil, model.CategoryPropertyManager},
		{"default commercial", "Short Pump Town Center", []string{"shopping_mall"}, model.CategoryCommercialProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &places.Place{ID: "p1", Types: tt.types}
			p.DisplayName.Text = tt.place
			lead, err := n.Normalize(source.RawResult{Source: model.SourcePlaces, Place: p}, testInfo)
			require.NoError(t, err)
			assert.Equal(t, tt.category, lead.Category)
		})
	}
}

func TestNormalize_PlaceWithoutNameIsMalformed(t *testing.T) {
	n := New()
	p := &places.Place{ID: "p2"}

	_, err := n.Normalize(source.RawResult{Source: model.SourcePlaces, Place: p}, testInfo)
	require.Error(t, err)
	assert.True(t, resilience.IsMalformed(err))
}

func TestNormalize_EmptyPayloadIsMalformed(t *testing.T) {
	n := New()

	_, err := n.Normalize(source.RawResult{Source: model.SourceCatalog}, testInfo)
	assert.True(t, resilience.IsMalformed(err))

	_, err = n.Normalize(source.RawResult{Source: model.SourcePlaces}, testInfo)
	assert.True(t, resilience.IsMalformed(err))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Paving, LLC", "acme paving"},
		{"ACME   PAVING INC", "acme paving"},
		{"J&B Sealcoating Co.", "j b sealcoating"},
		{"  Tidewater Asphalt  ", "tidewater asphalt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

// Identity keys derived from names incorporate the locality, so the same
// business name in two localities stays distinct.
func TestNameKeyScopedToLocality(t *testing.T) {
	a := nameKey("Acme Paving", "fairfax-county")
	b := nameKey("Acme Paving", "arlington-county")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, nameKey("acme paving llc", "fairfax-county"))
}
