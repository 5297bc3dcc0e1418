package casino

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MinCrashPoint  = 1.01
	probabilityTol = 1e-6
)

// Tier is one probability bucket; crash points drawn from it fall in (Min, Max].
type Tier struct {
	Name        string  `yaml:"name" json:"name"`
	Probability float64 `yaml:"probability" json:"probability"`
	Min         float64 `yaml:"min" json:"min"`
	Max         float64 `yaml:"max" json:"max"`
}

// DefaultTiers is the stock table: 70% low, 20% medium, 8% high, 2% jackpot.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "low", Probability: 0.70, Min: 1.01, Max: 2.00},
		{Name: "medium", Probability: 0.20, Min: 2.01, Max: 5.00},
		{Name: "high", Probability: 0.08, Min: 5.01, Max: 10.00},
		{Name: "jackpot", Probability: 0.02, Min: 10.01, Max: 50.00},
	}
}

// ValidateTiers checks every tier and that the probabilities sum to 1.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("tier table is empty")
	}

	var errs []string
	var sum float64
	for i, t := range tiers {
		if !(t.Probability > 0 && t.Probability <= 1) {
			errs = append(errs, fmt.Sprintf("tiers[%d] %q: probability must be in (0,1]", i, t.Name))
		}
		if t.Min < 1 {
			errs = append(errs, fmt.Sprintf("tiers[%d] %q: min must be >= 1", i, t.Name))
		}
		if t.Max < MinCrashPoint || t.Max <= t.Min {
			errs = append(errs, fmt.Sprintf("tiers[%d] %q: max must exceed min and be >= %.2f", i, t.Name, MinCrashPoint))
		}
		sum += t.Probability
	}
	if math.Abs(sum-1) > probabilityTol {
		errs = append(errs, fmt.Sprintf("probabilities sum to %f, want 1", sum))
	}

	if len(errs) > 0 {
		return fmt.Errorf("tier validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Distribution samples crash points from an ordered tier table.
type Distribution struct {
	tiers  []Tier
	lowest int
	max    float64
}

func NewDistribution(tiers []Tier) (*Distribution, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}

	d := &Distribution{tiers: append([]Tier(nil), tiers...)}
	for i, t := range d.tiers {
		if t.Min < d.tiers[d.lowest].Min {
			d.lowest = i
		}
		d.max = math.Max(d.max, t.Max)
	}
	return d, nil
}

func (d *Distribution) Tiers() []Tier { return append([]Tier(nil), d.tiers...) }

// MaxCrashPoint is the largest value Sample can return.
func (d *Distribution) MaxCrashPoint() float64 { return d.max }

// Sample draws a crash point rounded to two decimals.
func (d *Distribution) Sample(rng RandomSource) float64 {
	if rng == nil {
		rng = DefaultRNG()
	}

	r := rng.Float64()
	tier := d.tiers[d.lowest]
	var cumulative float64
	for _, t := range d.tiers {
		cumulative += t.Probability
		if cumulative >= r {
			tier = t
			break
		}
	}

	u := rng.Float64()
	v := tier.Max - (tier.Max-tier.Min)*u
	v = math.Round(v*100) / 100
	return math.Min(math.Max(v, MinCrashPoint), tier.Max)
}

type tierFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadTiers reads a YAML tier table; an empty path yields DefaultTiers.
func LoadTiers(path string) ([]Tier, error) {
	if path == "" {
		return DefaultTiers(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers: %w", err)
	}
	var f tierFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse tiers: %w", err)
	}
	if err := ValidateTiers(f.Tiers); err != nil {
		return nil, err
	}
	return f.Tiers, nil
}
