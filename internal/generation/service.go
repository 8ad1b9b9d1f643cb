package generation

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"atelier-ai/internal/billing"
	"atelier-ai/internal/history"
	"atelier-ai/internal/prompt"
)

type ServiceOptions struct {
	Validator *Validator
	Gate      *billing.Gate
	Gateway   *Gateway
	History   *history.Store
	Logger    *slog.Logger

	// ChargeTerminalFailures keeps the charge when the capability returned a
	// terminal failure; gateway-level failures always release the hold.
	ChargeTerminalFailures bool

	// DefaultService is used when a request names no service key.
	DefaultService string
}

// Service is the generation pipeline: validate, gate, compose, invoke,
// reconcile, persist. Validation and access failures return before the
// gateway or the ledger is touched; once a reservation exists it is always
// either confirmed or released before the call returns.
type Service struct {
	validator              *Validator
	gate                   *billing.Gate
	gateway                *Gateway
	history                *history.Store
	logger                 *slog.Logger
	chargeTerminalFailures bool
	defaultService         string
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	defaultService := opts.DefaultService
	if defaultService == "" {
		defaultService = "studio-shot"
	}

	return &Service{
		validator:              opts.Validator,
		gate:                   opts.Gate,
		gateway:                opts.Gateway,
		history:                opts.History,
		logger:                 logger,
		chargeTerminalFailures: opts.ChargeTerminalFailures,
		defaultService:         defaultService,
	}
}

// Outcome is the normalized response for one accepted request. RecordID is
// zero when the history write failed; a successful generation is still
// returned in that case.
type Outcome struct {
	RecordID uuid.UUID
	Result   Result
	Prompt   prompt.Composed
}

func (s *Service) Generate(ctx context.Context, req Request) (Outcome, error) {
	if req.Service == "" {
		req.Service = s.defaultService
	}

	normalized, err := s.validator.Validate(req)
	if err != nil {
		return Outcome{}, err
	}

	reservation, _, err := s.gate.Reserve(ctx, normalized.RequesterID, normalized.Service)
	if err != nil {
		return Outcome{}, err
	}

	composed := prompt.Compose(normalized.Facets, len(normalized.GarmentRefs))

	// A caller disconnect must not abandon the in-flight call: it may
	// already be billed upstream. The gateway applies its own timeout on
	// top of this detached context, and reconciliation follows the
	// eventual result.
	callCtx := context.WithoutCancel(ctx)

	result := s.gateway.Generate(callCtx, composed.Text, normalized.GarmentRefs)

	if err := s.reconcile(callCtx, reservation, result); err != nil {
		// The hold state is now ambiguous; surface loudly but keep the
		// terminal result for the caller.
		s.logger.Error("credit reconciliation failed", "err", err, "service", normalized.Service)
	}

	recordID := s.persist(callCtx, normalized, composed, result)

	return Outcome{
		RecordID: recordID,
		Result:   result,
		Prompt:   composed,
	}, nil
}

func (s *Service) reconcile(ctx context.Context, reservation *billing.Reservation, result Result) error {
	if reservation == nil {
		return nil
	}
	if result.Status == StatusSucceeded {
		return s.gate.Confirm(ctx, reservation)
	}
	if result.Terminal && s.chargeTerminalFailures {
		return s.gate.Confirm(ctx, reservation)
	}
	return s.gate.Release(ctx, reservation)
}

// persist appends the audit record. Losing the history write never erases a
// result the user already earned, so failures are logged and swallowed.
func (s *Service) persist(ctx context.Context, normalized NormalizedRequest, composed prompt.Composed, result Result) uuid.UUID {
	rec := &history.Record{
		RequesterID: normalized.RequesterID,
		Prompt:      composed.Text,
		Status:      string(result.Status),
		ImageRef:    result.ImageRef,
		Description: result.Description,
		ErrorKind:   string(result.ErrorKind),
		Diagnostic:  result.Diagnostic,
	}
	if err := rec.SetGarmentRefs(normalized.GarmentRefs); err != nil {
		s.logger.Error("encode garment refs failed", "err", err)
		return uuid.Nil
	}
	if err := rec.SetFacetSnapshot(composed.Snapshot); err != nil {
		s.logger.Error("encode facet snapshot failed", "err", err)
		return uuid.Nil
	}

	id, err := s.history.Append(ctx, rec)
	if err != nil {
		s.logger.Error("history write failed", "err", err, "status", result.Status)
		return uuid.Nil
	}
	return id
}
