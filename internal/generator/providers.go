package generator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	// ErrProviderNotFound is returned when a dotted path names nothing
	ErrProviderNotFound = errors.New("provider not found")
	// ErrNotCallable is returned when a dotted path names a namespace
	ErrNotCallable = errors.New("provider path is not a function")
)

// ProviderFunc produces one random value from positional args
type ProviderFunc func(args []interface{}) (interface{}, error)

// Namespace groups providers and nested namespaces under dotted names
type Namespace map[string]interface{}

// Providers is a library of random-data functions addressed by dotted path
type Providers struct {
	root  Namespace
	faker *gofakeit.Faker
}

// NewProviders builds the provider library. A zero seed picks a random one.
func NewProviders(seed int64) *Providers {
	p := &Providers{faker: gofakeit.New(seed)}
	p.root = p.namespaces()
	return p
}

// Resolve walks a dotted path to a provider function
func (p *Providers) Resolve(path string) (ProviderFunc, error) {
	var current interface{} = p.root
	for _, part := range strings.Split(path, ".") {
		ns, ok := current.(Namespace)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, path)
		}
		next, ok := ns[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, path)
		}
		current = next
	}

	fn, ok := current.(ProviderFunc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, path)
	}
	return fn, nil
}

// Paths lists every callable dotted path
func (p *Providers) Paths() []string {
	var out []string
	var walk func(prefix string, ns Namespace)
	walk = func(prefix string, ns Namespace) {
		for name, v := range ns {
			full := name
			if prefix != "" {
				full = prefix + "." + name
			}
			switch node := v.(type) {
			case Namespace:
				walk(full, node)
			case ProviderFunc:
				out = append(out, full)
			}
		}
	}
	walk("", p.root)
	return out
}

func (p *Providers) namespaces() Namespace {
	f := p.faker
	return Namespace{
		"string": Namespace{
			"uuid": noArgs(func() interface{} { return f.UUID() }),
			"numeric": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.DigitN(uint(argInt(args, 0, 1))), nil
			}),
			"alpha": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.LetterN(uint(argInt(args, 0, 1))), nil
			}),
			"alphanumeric": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.Regex(fmt.Sprintf("[a-zA-Z0-9]{%d}", argInt(args, 0, 1))), nil
			}),
		},
		"person": Namespace{
			"firstName": noArgs(func() interface{} { return f.FirstName() }),
			"lastName":  noArgs(func() interface{} { return f.LastName() }),
			"fullName":  noArgs(func() interface{} { return f.Name() }),
			"gender":    noArgs(func() interface{} { return f.Gender() }),
			"jobTitle":  noArgs(func() interface{} { return f.JobTitle() }),
		},
		"internet": Namespace{
			"email":      noArgs(func() interface{} { return f.Email() }),
			"userName":   noArgs(func() interface{} { return f.Username() }),
			"url":        noArgs(func() interface{} { return f.URL() }),
			"domainName": noArgs(func() interface{} { return f.DomainName() }),
			"ipv4":       noArgs(func() interface{} { return f.IPv4Address() }),
			"ipv6":       noArgs(func() interface{} { return f.IPv6Address() }),
			"mac":        noArgs(func() interface{} { return f.MacAddress() }),
			"userAgent":  noArgs(func() interface{} { return f.UserAgent() }),
		},
		"phone": Namespace{
			"number": noArgs(func() interface{} { return f.Phone() }),
		},
		"number": Namespace{
			"int": ProviderFunc(func(args []interface{}) (interface{}, error) {
				min, max := argInt(args, 0, 0), argInt(args, 1, 1000000)
				if max < min {
					return nil, fmt.Errorf("number.int: max %d is below min %d", max, min)
				}
				return f.Number(min, max), nil
			}),
			"float": ProviderFunc(func(args []interface{}) (interface{}, error) {
				min, max := argFloat(args, 0, 0), argFloat(args, 1, 1)
				if max < min {
					return nil, fmt.Errorf("number.float: max %v is below min %v", max, min)
				}
				return f.Float64Range(min, max), nil
			}),
		},
		"datatype": Namespace{
			"boolean": noArgs(func() interface{} { return f.Bool() }),
		},
		"finance": Namespace{
			"accountNumber": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.DigitN(uint(argInt(args, 0, 8))), nil
			}),
			"routingNumber":    noArgs(func() interface{} { return f.AchRouting() }),
			"creditCardNumber": noArgs(func() interface{} { return f.CreditCardNumber(nil) }),
			"currencyCode":     noArgs(func() interface{} { return f.CurrencyShort() }),
			"amount": ProviderFunc(func(args []interface{}) (interface{}, error) {
				min, max := argFloat(args, 0, 1), argFloat(args, 1, 1000)
				return strconv.FormatFloat(f.Price(min, max), 'f', 2, 64), nil
			}),
		},
		"location": Namespace{
			"city":      noArgs(func() interface{} { return f.City() }),
			"country":   noArgs(func() interface{} { return f.Country() }),
			"state":     noArgs(func() interface{} { return f.State() }),
			"street":    noArgs(func() interface{} { return f.Street() }),
			"zipCode":   noArgs(func() interface{} { return f.Zip() }),
			"latitude":  noArgs(func() interface{} { return f.Latitude() }),
			"longitude": noArgs(func() interface{} { return f.Longitude() }),
		},
		"company": Namespace{
			"name": noArgs(func() interface{} { return f.Company() }),
		},
		"lorem": Namespace{
			"word": noArgs(func() interface{} { return f.Word() }),
			"sentence": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.Sentence(argInt(args, 0, 6)), nil
			}),
		},
		"date": Namespace{
			"past":   noArgs(func() interface{} { return f.PastDate() }),
			"future": noArgs(func() interface{} { return f.FutureDate() }),
		},
		"helpers": Namespace{
			"numerify": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.Numerify(argString(args, 0, "###")), nil
			}),
			"lexify": ProviderFunc(func(args []interface{}) (interface{}, error) {
				return f.Lexify(argString(args, 0, "???")), nil
			}),
			"arrayElement": ProviderFunc(func(args []interface{}) (interface{}, error) {
				choices, ok := argSlice(args, 0)
				if !ok || len(choices) == 0 {
					return nil, errors.New("helpers.arrayElement: first arg must be a non-empty array")
				}
				return choices[f.Number(0, len(choices)-1)], nil
			}),
		},
	}
}

func noArgs(fn func() interface{}) ProviderFunc {
	return func([]interface{}) (interface{}, error) {
		return fn(), nil
	}
}

// stringify renders a provider result the way it is stored in mappings
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func argInt(args []interface{}, i, def int) int {
	if i >= len(args) {
		return def
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func argFloat(args []interface{}, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	switch v := args[i].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func argString(args []interface{}, i int, def string) string {
	if i >= len(args) {
		return def
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return def
}

func argSlice(args []interface{}, i int) ([]interface{}, bool) {
	if i >= len(args) {
		return nil, false
	}
	s, ok := args[i].([]interface{})
	return s, ok
}
