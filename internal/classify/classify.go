// Package classify assigns priority tiers with a strictly ordered,
// first-match-wins rule cascade. Low-signal tiers carry per-plan-unit
// acceptance caps so they cannot drown out high-signal leads within one
// locality's result set.
package classify

import (
	"strings"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// Tier bounds. 1 is the highest-confidence bucket, 6 the weakest accepted one.
const (
	TierPrimaryNAICS = 1
	TierRelatedNAICS = 2
	TierCoreKeyword  = 3
	TierRelatedTerm  = 4
	TierSector       = 5
	TierFallback     = 6
)

// Tally tracks per-plan-unit acceptances for the capped tiers. One Tally is
// created per unit and discarded with it; caps never span units.
type Tally struct {
	counts map[int]int
}

// NewTally creates an empty per-unit tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[int]int)}
}

func (t *Tally) take(tier, cap int) bool {
	if t.counts[tier] >= cap {
		return false
	}
	t.counts[tier]++
	return true
}

// Classifier evaluates the tier cascade against config-supplied tables.
type Classifier struct {
	cfg          config.ClassifyConfig
	relatedNAICS map[string]bool
}

// New builds a Classifier from config.
func New(cfg config.ClassifyConfig) *Classifier {
	related := make(map[string]bool, len(cfg.RelatedNAICS))
	for _, code := range cfg.RelatedNAICS {
		related[code] = true
	}
	return &Classifier{cfg: cfg, relatedNAICS: related}
}

// Classify runs the cascade top to bottom and returns the matched tier and
// the inclusion decision. The first matching rule group decides: a lead
// matching both a tier-1 and a tier-3 rule is tier 1. A capped tier that
// matches with its cap spent returns (tier, false) — the lead is rejected,
// not re-evaluated against lower groups.
func (c *Classifier) Classify(lead model.Lead, tally *Tally) (int, bool) {
	text := strings.ToLower(lead.DisplayName + " " + lead.Notes)

	if c.cfg.PrimaryNAICS != "" && lead.NAICSCode == c.cfg.PrimaryNAICS {
		return TierPrimaryNAICS, true
	}

	if c.relatedNAICS[lead.NAICSCode] {
		return TierRelatedNAICS, true
	}

	if containsAny(text, c.cfg.CoreKeywords) {
		return TierCoreKeyword, true
	}

	if containsAny(text, c.cfg.RelatedKeywords) {
		return TierRelatedTerm, tally.take(TierRelatedTerm, c.cfg.Tier4Cap)
	}

	if containsAny(text, c.cfg.SectorTerms) {
		return TierSector, tally.take(TierSector, c.cfg.Tier5Cap)
	}

	// Fallback: no classification signal, but a reachable business in the
	// unit's locality still clears the minimal filter.
	if lead.Phone != "" || lead.Website != "" || lead.Address != "" {
		return TierFallback, tally.take(TierFallback, c.cfg.Tier6Cap)
	}

	return 0, false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
