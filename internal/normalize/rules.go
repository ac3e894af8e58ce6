package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"precatorios/internal/textutil"
)

// Rules is the per-account override table applied after mapping. Names are
// matched ignoring case and accents.
type Rules struct {
	// Exclude drops every record whose assignee matches.
	Exclude []string `yaml:"exclude"`
	// Rename rewrites matching assignees to the canonical name.
	Rename map[string]string `yaml:"rename"`
	// FeeOverrides sets the fee share of profit (0.30 = 30%) per assignee,
	// matched against the name after renaming.
	FeeOverrides map[string]float64 `yaml:"fee_overrides"`
}

// DefaultRules mirrors the cleanup rules the board has always needed.
func DefaultRules() Rules {
	return Rules{
		Exclude: []string{"Paulo Martins"},
		Rename:  map[string]string{"Joao Pedro": "Kaio Kinoshita"},
	}
}

// LoadRules reads a YAML rules file. An empty path or a missing file yields
// DefaultRules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}

func (r Rules) Validate() error {
	for name, rate := range r.FeeOverrides {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("fee override for %q must be in [0, 1), got %v", name, rate)
		}
	}
	for from, to := range r.Rename {
		if textutil.Fold(to) == "" {
			return fmt.Errorf("rename target for %q is empty", from)
		}
	}
	return nil
}

// compiledRules holds the folded lookup tables.
type compiledRules struct {
	exclude map[string]struct{}
	rename  map[string]string
	fees    map[string]float64
}

func compile(r Rules) compiledRules {
	c := compiledRules{
		exclude: make(map[string]struct{}, len(r.Exclude)),
		rename:  make(map[string]string, len(r.Rename)),
		fees:    make(map[string]float64, len(r.FeeOverrides)),
	}
	for _, name := range r.Exclude {
		c.exclude[textutil.Fold(name)] = struct{}{}
	}
	for from, to := range r.Rename {
		c.rename[textutil.Fold(from)] = to
	}
	for name, rate := range r.FeeOverrides {
		c.fees[textutil.Fold(name)] = rate
	}
	return c
}

// apply returns the assignee name after renaming, its fee rate, and false
// when the record must be dropped.
func (c compiledRules) apply(name string) (string, float64, bool) {
	key := textutil.Fold(name)
	if _, ok := c.exclude[key]; ok {
		return "", 0, false
	}
	if to, ok := c.rename[key]; ok {
		name = to
		key = textutil.Fold(to)
	}
	return name, c.fees[key], true
}
