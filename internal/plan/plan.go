// Package plan builds the static harvest plan: the fixed set of
// (region, locality, source) units iterated by the orchestrator. The region
// table is embedded so every run of the same binary walks the same plan in
// the same order.
package plan

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

//go:embed regions.yaml
var regionsYAML []byte

// Locality is one city or county within a region.
type Locality struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Region is a named group of localities.
type Region struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Localities []Locality `yaml:"localities"`
}

// Plan holds the region table and the expanded unit list.
type Plan struct {
	Regions []Region
	units   []model.PlanUnit

	regionNames   map[string]string
	localityNames map[string]string
}

type regionFile struct {
	Regions []Region `yaml:"regions"`
}

// Load parses the embedded region table and expands it into plan units.
func Load() (*Plan, error) {
	return Parse(regionsYAML)
}

// Parse builds a Plan from raw region-table YAML.
func Parse(data []byte) (*Plan, error) {
	var rf regionFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrap(err, "plan: parse region table")
	}
	if len(rf.Regions) == 0 {
		return nil, eris.New("plan: region table is empty")
	}

	p := &Plan{
		Regions:       rf.Regions,
		regionNames:   make(map[string]string),
		localityNames: make(map[string]string),
	}

	// Deterministic iteration order: region code, then locality index as
	// listed, then source kind. Re-runs walk the plan identically.
	sort.Slice(p.Regions, func(i, j int) bool { return p.Regions[i].ID < p.Regions[j].ID })

	for _, r := range p.Regions {
		if r.ID == "" {
			return nil, eris.New("plan: region without id")
		}
		p.regionNames[r.ID] = r.Name
		for _, loc := range r.Localities {
			if loc.ID == "" {
				return nil, eris.Errorf("plan: region %s has a locality without id", r.ID)
			}
			p.localityNames[loc.ID] = loc.Name
			for _, src := range model.SourceKinds {
				p.units = append(p.units, model.PlanUnit{
					RegionID:   r.ID,
					LocalityID: loc.ID,
					Source:     src,
				})
			}
		}
	}
	return p, nil
}

// Units returns the expanded plan units in fixed order.
func (p *Plan) Units() []model.PlanUnit {
	return p.units
}

// RegionName resolves a region ID to its display name.
func (p *Plan) RegionName(id string) string {
	return p.regionNames[id]
}

// LocalityName resolves a locality ID to its display name.
func (p *Plan) LocalityName(id string) string {
	return p.localityNames[id]
}
