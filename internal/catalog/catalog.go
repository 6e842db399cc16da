// Package catalog holds the immutable reference data the engine classifies against:
// named panel catalogs, explicit risk-tier rules and the CPT base-rate table.
//
// A Set is built once, at start-up, and only read afterwards. It is safe for
// concurrent use.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Entry is one panel in a catalog.
type Entry struct {
	Name      string               `json:"name" mapstructure:"name"`
	GeneCount int                  `json:"gene_count" mapstructure:"gene_count"`
	Category  domain.PanelCategory `json:"category" mapstructure:"category"`
}

// Catalog is a fixed mapping from panel name to entry.
type Catalog struct {
	name    string
	entries map[string]Entry
	order   []string
}

// NewCatalog builds a catalog, rejecting duplicate names, unknown categories and
// non-positive gene counts.
func NewCatalog(name string, entries []Entry) (*Catalog, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("catalog name is required")
	}
	c := &Catalog{name: name, entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog %s: panel name is required", name)
		}
		if e.GeneCount <= 0 {
			return nil, fmt.Errorf("catalog %s: panel %q: %w", name, e.Name, domain.ErrInvalidGeneCount)
		}
		if !e.Category.IsValid() {
			return nil, fmt.Errorf("catalog %s: panel %q: %w: %s", name, e.Name, domain.ErrInvalidCategory, e.Category)
		}
		if _, dup := c.entries[e.Name]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate panel %q", name, e.Name)
		}
		c.entries[e.Name] = e
		c.order = append(c.order, e.Name)
	}
	sort.Strings(c.order)
	return c, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of panels.
func (c *Catalog) Len() int { return len(c.entries) }

// Lookup finds a panel by exact name.
func (c *Catalog) Lookup(panel string) (Entry, bool) {
	e, ok := c.entries[panel]
	return e, ok
}

// Entries returns a copy of all entries sorted by name.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name])
	}
	return out
}

// RiskTierRule assigns an explicit risk level to a named panel, overriding the
// gene-count thresholds.
type RiskTierRule struct {
	Panel     string           `json:"panel" mapstructure:"panel"`
	RiskLevel domain.RiskLevel `json:"risk_level" mapstructure:"risk_level"`
	Note      string           `json:"note" mapstructure:"note"`
}

// Set is the complete reference data: catalogs, risk-tier rules and CPT rates.
type Set struct {
	catalogs       map[string]*Catalog
	defaultCatalog string
	rules          map[string]RiskTierRule
	rates          map[domain.CPTCode]float64
}

// NewSet assembles a Set. The first catalog becomes the default unless
// defaultCatalog names another one.
func NewSet(catalogs []*Catalog, defaultCatalog string, rules []RiskTierRule, rates map[domain.CPTCode]float64) (*Set, error) {
	if len(catalogs) == 0 {
		return nil, fmt.Errorf("at least one catalog is required")
	}
	s := &Set{
		catalogs: make(map[string]*Catalog, len(catalogs)),
		rules:    make(map[string]RiskTierRule, len(rules)),
		rates:    make(map[domain.CPTCode]float64, len(rates)),
	}
	for _, c := range catalogs {
		if _, dup := s.catalogs[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate catalog %q", c.Name())
		}
		s.catalogs[c.Name()] = c
	}

	s.defaultCatalog = catalogs[0].Name()
	if defaultCatalog != "" {
		if _, ok := s.catalogs[defaultCatalog]; !ok {
			return nil, fmt.Errorf("default catalog %q: %w", defaultCatalog, domain.ErrUnknownCatalog)
		}
		s.defaultCatalog = defaultCatalog
	}

	for _, r := range rules {
		if !r.RiskLevel.IsValid() {
			return nil, fmt.Errorf("risk rule for %q: %w: %s", r.Panel, domain.ErrInvalidRiskLevel, r.RiskLevel)
		}
		s.rules[r.Panel] = r
	}

	for code, rate := range rates {
		if rate < 0 {
			return nil, fmt.Errorf("negative base rate for CPT %s", code)
		}
		s.rates[code] = rate
	}
	if _, ok := s.rates[domain.CPT81445]; !ok {
		return nil, fmt.Errorf("rate table must include the low-complexity code %s", domain.CPT81445)
	}
	return s, nil
}

// Catalog returns the named catalog; an empty name selects the default.
func (s *Set) Catalog(name string) (*Catalog, error) {
	if name == "" {
		name = s.defaultCatalog
	}
	c, ok := s.catalogs[name]
	if !ok {
		return nil, fmt.Errorf("catalog %q: %w", name, domain.ErrUnknownCatalog)
	}
	return c, nil
}

// DefaultCatalog returns the default catalog name.
func (s *Set) DefaultCatalog() string { return s.defaultCatalog }

// WithDefault returns a copy of the set that uses name as its default catalog.
func (s *Set) WithDefault(name string) (*Set, error) {
	if _, ok := s.catalogs[name]; !ok {
		return nil, fmt.Errorf("catalog %q: %w", name, domain.ErrUnknownCatalog)
	}
	cp := *s
	cp.defaultCatalog = name
	return &cp, nil
}

// Names returns the catalog names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.catalogs))
	for name := range s.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RiskTierRule returns the explicit rule for a panel, if one exists.
func (s *Set) RiskTierRule(panel string) (RiskTierRule, bool) {
	r, ok := s.rules[panel]
	return r, ok
}

// Rate returns the base reimbursement for a CPT code. Unknown codes fall back to
// the low-complexity rate.
func (s *Set) Rate(code domain.CPTCode) float64 {
	if rate, ok := s.rates[code]; ok {
		return rate
	}
	return s.rates[domain.CPT81445]
}

// Rates returns a copy of the rate table.
func (s *Set) Rates() map[domain.CPTCode]float64 {
	out := make(map[domain.CPTCode]float64, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}
