package resolver

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-modulus/internal/models"
)

// Resolution failures
var (
	ErrPayloadMissing   = errors.New("variant payload missing")
	ErrPayloadInvalid   = errors.New("variant payload malformed")
	ErrProxyUnavailable = errors.New("proxy variant selected but no proxy handler configured")
)

// OutcomeKind tags the variant of an Outcome
type OutcomeKind int

const (
	OutcomeStatic OutcomeKind = iota
	OutcomeProxy
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStatic:
		return "static"
	case OutcomeProxy:
		return "proxy"
	default:
		return "error"
	}
}

// Outcome is the result of resolving one request. Exactly one of Payload,
// Proxy and Err is set, matching Kind.
type Outcome struct {
	Kind      OutcomeKind
	VariantID string
	Selection string // models.SelectionDefault or models.SelectionMapping
	KeyValue  string

	Payload *models.VariantPayload
	Proxy   gin.HandlerFunc
	Err     error
}

// Mapped reports whether a stored mapping chose the variant
func (o Outcome) Mapped() bool {
	return o.Selection == models.SelectionMapping
}
