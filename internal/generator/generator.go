package generator

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/prasenjit/go-modulus/internal/models"
)

// DefaultStart is the first value of an incrementing generator
const DefaultStart = "1000"

// Generator computes the next value of a named field from its previous value.
// It holds no state of its own; the caller owns the current value.
type Generator struct {
	Name     string
	Type     string
	generate func(current string) (string, error)
}

// Generate returns the value that follows current. An empty current means
// there is no prior value.
func (g *Generator) Generate(current string) (string, error) {
	return g.generate(current)
}

// Build compiles generator configs against the default provider library
func Build(configs []models.GeneratorConfig) []*Generator {
	return BuildWith(configs, NewProviders(0))
}

// BuildWith compiles generator configs against the given provider library.
// Provider paths are resolved when a value is generated, not here.
func BuildWith(configs []models.GeneratorConfig, providers *Providers) []*Generator {
	gens := make([]*Generator, 0, len(configs))
	for _, cfg := range configs {
		gens = append(gens, newGenerator(cfg, providers))
	}
	return gens
}

// GenerateAll computes the next value of every generator. Names missing from
// current have no prior value. The first failure aborts the whole batch.
func GenerateAll(gens []*Generator, current map[string]string) (map[string]string, error) {
	next := make(map[string]string, len(gens))
	for _, g := range gens {
		v, err := g.Generate(current[g.Name])
		if err != nil {
			return nil, fmt.Errorf("generator %q: %w", g.Name, err)
		}
		next[g.Name] = v
	}
	return next, nil
}

func newGenerator(cfg models.GeneratorConfig, providers *Providers) *Generator {
	params := models.GeneratorParams{}
	if cfg.Config != nil {
		params = *cfg.Config
	}

	g := &Generator{Name: cfg.Name, Type: cfg.Type}
	if cfg.Type == models.GeneratorTypeIncrementing {
		g.generate = incrementing(params)
	} else {
		g.generate = providerBacked(cfg.Type, params, providers)
	}
	return g
}

// leadingInt matches what an integer parse accepts before the first junk rune
var leadingInt = regexp.MustCompile(`^\s*[+-]?\d+`)

func incrementing(params models.GeneratorParams) func(string) (string, error) {
	prefix, suffix, start := params.Prefix, params.Suffix, params.Start
	if start == "" {
		start = DefaultStart
	}
	first := prefix + start + suffix

	return func(current string) (string, error) {
		tail := current
		if prefix != "" {
			tail = strings.TrimPrefix(tail, prefix)
		}
		if suffix != "" {
			tail = strings.TrimSuffix(tail, suffix)
		}
		if tail == "" {
			return first, nil
		}

		digits := leadingInt.FindString(tail)
		if digits == "" {
			return first, nil
		}
		n, ok := new(big.Int).SetString(strings.TrimSpace(digits), 10)
		if !ok {
			return first, nil
		}

		return prefix + n.Add(n, big.NewInt(1)).String() + suffix, nil
	}
}

func providerBacked(path string, params models.GeneratorParams, providers *Providers) func(string) (string, error) {
	return func(string) (string, error) {
		fn, err := providers.Resolve(path)
		if err != nil {
			return "", err
		}

		result, err := fn(params.Args)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}

		return params.Prefix + stringify(result), nil
	}
}

// Summaries describes compiled generators for listings
func Summaries(gens []*Generator) []models.GeneratorSummary {
	out := make([]models.GeneratorSummary, len(gens))
	for i, g := range gens {
		out[i] = models.GeneratorSummary{Name: g.Name, Type: g.Type}
	}
	return out
}
