package classify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

func testConfig() config.ClassifyConfig {
	return config.ClassifyConfig{
		PrimaryNAICS:    "238990",
		RelatedNAICS:    []string{"237310", "238110"},
		CoreKeywords:    []string{"asphalt", "paving", "sealcoating"},
		RelatedKeywords: []string{"property management", "shopping center", "airport"},
		SectorTerms:     []string{"contractor", "construction"},
		Tier4Cap:        25,
		Tier5Cap:        10,
		Tier6Cap:        5,
	}
}

func TestClassify_TierOrder(t *testing.T) {
	c := New(testConfig())

	tests := []struct {
		name     string
		lead     model.Lead
		wantTier int
		wantOK   bool
	}{
		{
			name:     "primary naics",
			lead:     model.Lead{NAICSCode: "238990", DisplayName: "Acme Paving"},
			wantTier: TierPrimaryNAICS,
			wantOK:   true,
		},
		{
			name:     "related naics",
			lead:     model.Lead{NAICSCode: "237310", DisplayName: "Roadway Services"},
			wantTier: TierRelatedNAICS,
			wantOK:   true,
		},
		{
			name:     "core keyword in name",
			lead:     model.Lead{DisplayName: "Valley Sealcoating"},
			wantTier: TierCoreKeyword,
			wantOK:   true,
		},
		{
			name:     "core keyword in notes",
			lead:     model.Lead{DisplayName: "Valley Services", Notes: "Presolicitation; asphalt repair"},
			wantTier: TierCoreKeyword,
			wantOK:   true,
		},
		{
			name:     "related keyword",
			lead:     model.Lead{DisplayName: "Tysons Shopping Center"},
			wantTier: TierRelatedTerm,
			wantOK:   true,
		},
		{
			name:     "sector term",
			lead:     model.Lead{DisplayName: "Dominion Construction Group"},
			wantTier: TierSector,
			wantOK:   true,
		},
		{
			name:     "fallback with phone",
			lead:     model.Lead{DisplayName: "Blue Ridge Partners", Phone: "540-555-0101"},
			wantTier: TierFallback,
			wantOK:   true,
		},
		{
			name:   "no signal, unreachable",
			lead:   model.Lead{DisplayName: "Blue Ridge Partners"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, ok := c.Classify(tt.lead, NewTally())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTier, tier)
			}
		})
	}
}

// A lead matching rules from several tiers lands in the highest one, and the
// match never consumes a lower tier's cap.
func TestClassify_FirstMatchWins(t *testing.T) {
	c := New(testConfig())
	tally := NewTally()

	lead := model.Lead{
		NAICSCode:   "238990",
		DisplayName: "Commonwealth Paving and Property Management",
		Phone:       "804-555-0102",
	}
	tier, ok := c.Classify(lead, tally)
	require.True(t, ok)
	assert.Equal(t, TierPrimaryNAICS, tier)
	assert.Zero(t, tally.counts[TierRelatedTerm])
	assert.Zero(t, tally.counts[TierFallback])
}

func TestClassify_CapRejectsWithoutFallthrough(t *testing.T) {
	cfg := testConfig()
	cfg.Tier4Cap = 2
	c := New(cfg)
	tally := NewTally()

	for i := 0; i < 2; i++ {
		lead := model.Lead{DisplayName: fmt.Sprintf("Office Airport Plaza %d", i), Phone: "703-555-0103"}
		tier, ok := c.Classify(lead, tally)
		require.True(t, ok)
		require.Equal(t, TierRelatedTerm, tier)
	}

	// Cap spent: still reported as a tier-4 match, but rejected. The phone
	// number must not rescue it into the fallback tier.
	lead := model.Lead{DisplayName: "Office Airport Plaza 2", Phone: "703-555-0103"}
	tier, ok := c.Classify(lead, tally)
	assert.False(t, ok)
	assert.Equal(t, TierRelatedTerm, tier)
	assert.Zero(t, tally.counts[TierFallback])
}

func TestClassify_CapsAreIndependentPerTier(t *testing.T) {
	cfg := testConfig()
	cfg.Tier4Cap = 1
	cfg.Tier5Cap = 1
	c := New(cfg)
	tally := NewTally()

	_, ok := c.Classify(model.Lead{DisplayName: "Shopping Center One"}, tally)
	require.True(t, ok)
	_, ok = c.Classify(model.Lead{DisplayName: "Shopping Center Two"}, tally)
	require.False(t, ok)

	// Tier 5 has its own budget.
	tier, ok := c.Classify(model.Lead{DisplayName: "Piedmont Construction"}, tally)
	assert.True(t, ok)
	assert.Equal(t, TierSector, tier)
}

// Caps are scoped to a single plan unit: a fresh tally starts a fresh budget.
func TestClassify_FreshTallyResetsCaps(t *testing.T) {
	cfg := testConfig()
	cfg.Tier6Cap = 1
	c := New(cfg)

	first := NewTally()
	_, ok := c.Classify(model.Lead{DisplayName: "Main Street Holdings", Address: "1 Main St"}, first)
	require.True(t, ok)
	_, ok = c.Classify(model.Lead{DisplayName: "Side Street Holdings", Address: "2 Side St"}, first)
	require.False(t, ok)

	second := NewTally()
	_, ok = c.Classify(model.Lead{DisplayName: "Side Street Holdings", Address: "2 Side St"}, second)
	assert.True(t, ok)
}

func TestClassify_KeywordMatchIsCaseInsensitive(t *testing.T) {
	c := New(testConfig())

	tier, ok := c.Classify(model.Lead{DisplayName: "RICHMOND ASPHALT SERVICES"}, NewTally())
	require.True(t, ok)
	assert.Equal(t, TierCoreKeyword, tier)
}
