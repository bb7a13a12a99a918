// Package normalize maps source-specific records into the canonical Lead
// shape. Pure mapping, no I/O: missing optional fields stay unset, but a
// record that cannot yield a display name and identity key is rejected as
// malformed.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/source"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/places"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/sam"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaces     = regexp.MustCompile(`\s+`)
	entitySufs = []string{" llc", " inc", " corp", " co", " ltd", " lp", " pllc"}
)

// Normalizer converts RawResults into Leads.
type Normalizer struct {
	titler cases.Caser
	now    func() time.Time
}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		titler: cases.Title(language.AmericanEnglish),
		now:    time.Now,
	}
}

// Normalize maps one raw record into a Lead. Tier is left unset; the
// classifier assigns it. Returns MalformedSourceError when the record cannot
// produce both a display name and an identity key.
func (n *Normalizer) Normalize(raw source.RawResult, info source.UnitInfo) (model.Lead, error) {
	switch raw.Source {
	case model.SourceCatalog:
		if raw.Catalog == nil {
			return model.Lead{}, &resilience.MalformedSourceError{Source: raw.Source, Reason: "empty catalog payload"}
		}
		return n.fromCatalog(raw.Catalog, info)
	case model.SourcePlaces:
		if raw.Place == nil {
			return model.Lead{}, &resilience.MalformedSourceError{Source: raw.Source, Reason: "empty place payload"}
		}
		return n.fromPlace(raw.Place, info)
	default:
		return model.Lead{}, &resilience.MalformedSourceError{Source: raw.Source, Reason: "unknown source kind"}
	}
}

func (n *Normalizer) fromCatalog(opp *sam.Opportunity, info source.UnitInfo) (model.Lead, error) {
	name := strings.TrimSpace(opp.Title)
	if name == "" {
		return model.Lead{}, &resilience.MalformedSourceError{Source: model.SourceCatalog, Reason: "opportunity without title"}
	}

	key := catalogKey(opp.NoticeID, name, info.Unit.LocalityID)

	lead := model.Lead{
		IdentityKey: key,
		DisplayName: n.displayName(name),
		Locality:    info.Locality,
		Region:      info.Region,
		Category:    model.CategoryContract,
		Website:     opp.UILink,
		Source:      model.SourceCatalog,
		SourceRef:   opp.NoticeID,
		NAICSCode:   opp.NAICSCode,
	}

	if len(opp.PointOfContact) > 0 {
		lead.Phone = strings.TrimSpace(opp.PointOfContact[0].Phone)
	}
	if city := opp.PlaceOfPerformance.City.Name; city != "" {
		lead.Address = strings.TrimSpace(fmt.Sprintf("%s, %s %s",
			city, opp.PlaceOfPerformance.State.Code, opp.PlaceOfPerformance.Zip))
	}
	lead.HasWebsite = lead.Website != ""

	var notes []string
	if opp.Type != "" {
		notes = append(notes, opp.Type)
	}
	if opp.ResponseDeadline != "" {
		notes = append(notes, "due "+opp.ResponseDeadline)
	}
	lead.Notes = strings.Join(notes, "; ")

	now := n.now().UTC()
	lead.FirstSeenAt = now
	lead.LastSeenAt = now
	return lead, nil
}

func (n *Normalizer) fromPlace(p *places.Place, info source.UnitInfo) (model.Lead, error) {
	name := strings.TrimSpace(p.DisplayName.Text)
	if name == "" {
		return model.Lead{}, &resilience.MalformedSourceError{Source: model.SourcePlaces, Reason: "place without display name"}
	}

	key := placeKey(p.ID, name, info.Unit.LocalityID)

	lead := model.Lead{
		IdentityKey: key,
		DisplayName: name,
		Locality:    info.Locality,
		Region:      info.Region,
		Category:    placeCategory(p, name),
		Phone:       p.NationalPhoneNumber,
		Address:     p.FormattedAddress,
		Website:     p.WebsiteURI,
		Source:      model.SourcePlaces,
		SourceRef:   p.ID,
		Rating:      p.Rating,
		HasWebsite:  p.WebsiteURI != "",
		Notes:       strings.Join(p.Types, ","),
	}

	now := n.now().UTC()
	lead.FirstSeenAt = now
	lead.LastSeenAt = now
	return lead, nil
}

// displayName tempers shouting catalog titles; mixed-case names pass through.
func (n *Normalizer) displayName(name string) string {
	if name == strings.ToUpper(name) && name != strings.ToLower(name) {
		return n.titler.String(strings.ToLower(name))
	}
	return name
}

func placeCategory(p *places.Place, name string) model.Category {
	lower := strings.ToLower(name)
	for _, t := range p.Types {
		if t == "airport" || t == "heliport" {
			return model.CategoryAviationFacility
		}
	}
	if strings.Contains(lower, "airport") || strings.Contains(lower, "airfield") || strings.Contains(lower, "aviation") {
		return model.CategoryAviationFacility
	}
	if strings.Contains(lower, "property management") || strings.Contains(lower, "property manage") ||
		strings.Contains(lower, "realty management") {
		return model.CategoryPropertyManager
	}
	return model.CategoryCommercialProperty
}

// catalogKey prefers the source-native notice ID; otherwise a stable hash of
// the normalized name and locality.
func catalogKey(noticeID, name, localityID string) string {
	if noticeID != "" {
		return "sam:" + noticeID
	}
	return nameKey(name, localityID)
}

func placeKey(placeID, name, localityID string) string {
	if placeID != "" {
		return "gplace:" + placeID
	}
	return nameKey(name, localityID)
}

// nameKey derives a deterministic fallback identity from the normalized name
// plus locality. Exact-key dedup only: two true duplicates with differently
// derived keys stay separate rather than risking a false merge.
func nameKey(name, localityID string) string {
	sum := sha256.Sum256([]byte(NormalizeName(name) + "|" + localityID))
	return "name:" + hex.EncodeToString(sum[:8])
}

// NormalizeName lowercases, strips punctuation and common entity suffixes,
// and collapses whitespace.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for _, suf := range entitySufs {
		s = strings.TrimSuffix(s, suf)
	}
	return strings.TrimSpace(s)
}
