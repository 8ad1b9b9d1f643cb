package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"atelier-ai/internal/catalog"
)

// Request is one incoming generation call. It is never persisted in raw
// form; only its derived artifacts are.
type Request struct {
	RequesterID *uuid.UUID
	GarmentRefs []string
	Facets      map[catalog.Category]string
	Service     string
	RequestedAt time.Time
}

// NormalizedRequest is a validated request with the facet selections
// resolved against the catalog snapshot taken at validation time.
type NormalizedRequest struct {
	RequesterID *uuid.UUID
	GarmentRefs []string
	Facets      map[catalog.Category]catalog.Facet
	Service     string
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type ErrorKind string

const (
	ErrorKindNone     ErrorKind = ""
	ErrorKindTimeout  ErrorKind = "timeout"
	ErrorKindUpstream ErrorKind = "upstream_error"
)

// Result is the terminal outcome of one capability invocation. Terminal
// reports whether the capability itself produced a final response; it stays
// false for gateway-level failures (timeout, transport), which drive the
// credit reconciliation policy.
type Result struct {
	Status      Status
	ImageRef    string
	Description string
	ErrorKind   ErrorKind
	Terminal    bool

	// Diagnostic carries the upstream message for the audit record. It is
	// never returned verbatim to the caller.
	Diagnostic string
}

// Capability is the external generation black box. One call synthesizes a
// fashion photograph (and/or a textual description) from the instruction
// text and the garment references.
type Capability interface {
	GenerateShot(ctx context.Context, promptText string, garmentRefs []string) (description string, imageRef string, err error)
}

type ValidationKind string

const (
	MissingGarment ValidationKind = "missing_garment"
	MissingFacet   ValidationKind = "missing_facet"
	UnknownFacet   ValidationKind = "unknown_facet"
)

type ValidationError struct {
	Kind     ValidationKind
	Category catalog.Category
	FacetID  string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingGarment:
		return "at least one garment reference is required"
	case MissingFacet:
		return fmt.Sprintf("no selection for category %q", e.Category)
	case UnknownFacet:
		return fmt.Sprintf("unknown facet %q in category %q", e.FacetID, e.Category)
	default:
		return "invalid generation request"
	}
}
