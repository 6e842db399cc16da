package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/spf13/viper"
)

type fileData struct {
	DefaultCatalog  string             `mapstructure:"default_catalog"`
	IncludeDefaults bool               `mapstructure:"include_defaults"`
	Catalogs        []fileCatalog      `mapstructure:"catalogs"`
	RiskRules       []fileRule         `mapstructure:"risk_rules"`
	Rates           map[string]float64 `mapstructure:"rates"`
}

type fileCatalog struct {
	Name   string      `mapstructure:"name"`
	Panels []filePanel `mapstructure:"panels"`
}

type filePanel struct {
	Name      string `mapstructure:"name"`
	GeneCount int    `mapstructure:"gene_count"`
	Category  string `mapstructure:"category"`
}

type fileRule struct {
	Panel     string `mapstructure:"panel"`
	RiskLevel string `mapstructure:"risk_level"`
	Note      string `mapstructure:"note"`
}

// Load returns the built-in reference data, or the contents of path when it is
// set. A non-empty defaultCatalog overrides the default catalog.
func Load(path, defaultCatalog string) (*Set, error) {
	set := Default()
	if path != "" {
		var err error
		if set, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if defaultCatalog == "" || defaultCatalog == set.DefaultCatalog() {
		return set, nil
	}
	return set.WithDefault(defaultCatalog)
}

// LoadFile reads reference data from a YAML or JSON file. Categories and risk
// levels may be given as enum values or display labels ("Liquid Biopsy",
// "Very High"); they are resolved here, once.
//
// With include_defaults set, the built-in catalogs, rules and rates are loaded
// first and the file's entries are added on top.
func LoadFile(path string) (*Set, error) {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var data fileData
	if err := v.Unmarshal(&data); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file %s: %w", path, err)
	}
	return data.build()
}

func (d *fileData) build() (*Set, error) {
	var catalogs []*Catalog
	var rules []RiskTierRule
	rates := make(map[domain.CPTCode]float64)

	if d.IncludeDefaults {
		def := Default()
		for _, name := range def.Names() {
			c, _ := def.Catalog(name)
			catalogs = append(catalogs, c)
		}
		rules = append(rules, DefaultRules()...)
		for code, rate := range DefaultRates() {
			rates[code] = rate
		}
	}

	for _, fc := range d.Catalogs {
		entries := make([]Entry, 0, len(fc.Panels))
		for _, p := range fc.Panels {
			category, err := domain.ParsePanelCategory(p.Category)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: panel %q: %w: %q", fc.Name, p.Name, err, p.Category)
			}
			entries = append(entries, Entry{Name: p.Name, GeneCount: p.GeneCount, Category: category})
		}
		c, err := NewCatalog(fc.Name, entries)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}

	for _, fr := range d.RiskRules {
		level, err := domain.ParseRiskLevel(fr.RiskLevel)
		if err != nil {
			return nil, fmt.Errorf("risk rule for %q: %w: %q", fr.Panel, err, fr.RiskLevel)
		}
		rules = append(rules, RiskTierRule{Panel: fr.Panel, RiskLevel: level, Note: fr.Note})
	}

	// viper lower-cases map keys
	for code, rate := range d.Rates {
		rates[domain.CPTCode(strings.ToUpper(code))] = rate
	}
	if len(rates) == 0 {
		rates = DefaultRates()
	}

	return NewSet(catalogs, d.DefaultCatalog, rules, rates)
}
