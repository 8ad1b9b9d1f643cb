package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownService  = errors.New("unknown service")
	ErrAnonymousDenied = errors.New("anonymous access denied")
)

// AccessDeniedError reports a tier shortfall together with every tier that
// would grant access.
type AccessDeniedError struct {
	Tier     Tier
	Service  string
	Required []Tier
}

func (e *AccessDeniedError) Error() string {
	names := make([]string, 0, len(e.Required))
	for _, t := range e.Required {
		names = append(names, t.String())
	}
	return fmt.Sprintf("tier %s cannot access %s (requires %s)", e.Tier, e.Service, strings.Join(names, ", "))
}

// Reservation is a credit hold taken for one generation attempt. It must end
// in exactly one of Confirm or Release.
type Reservation struct {
	RequesterID uuid.UUID
	Tier        Tier
	Service     string
	Cost        int
	EntryID     uuid.UUID
}

type GateOptions struct {
	Ledger         *Ledger
	Schedule       Schedule
	AllowAnonymous bool
	Logger         *slog.Logger
}

// Gate runs the per-request access protocol: resolve tier, check service
// permission, reserve credit. Reservations for the same requester serialize
// through a per-requester lock on top of the ledger's conditional UPDATE, so
// two concurrent requests can never both win the last credit. Internal
// failures deny: the gate fails closed.
type Gate struct {
	ledger         *Ledger
	schedule       Schedule
	allowAnonymous bool
	logger         *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewGate(opts GateOptions) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Gate{
		ledger:         opts.Ledger,
		schedule:       opts.Schedule,
		allowAnonymous: opts.AllowAnonymous,
		logger:         logger,
	}
}

// ResolveTier maps a requester to a tier, provisioning an account on first
// contact. Anonymous requesters resolve to the lowest tier when allowed.
func (g *Gate) ResolveTier(ctx context.Context, requesterID *uuid.UUID) (Tier, error) {
	if requesterID == nil {
		if !g.allowAnonymous {
			return TierTrial, ErrAnonymousDenied
		}
		return Tiers()[0], nil
	}

	account, err := g.ledger.EnsureAccount(ctx, *requesterID)
	if err != nil {
		return TierTrial, err
	}
	tier, err := ParseTier(account.Tier)
	if err != nil {
		// An unparseable stored tier is a data problem; deny rather than guess.
		return TierTrial, err
	}
	return tier, nil
}

// CheckAccess returns nil when the tier may use the service. A denial lists
// every tier at or above the service's minimal tier.
func (g *Gate) CheckAccess(tier Tier, service string) error {
	min, ok := g.schedule.MinTier(service)
	if !ok {
		return ErrUnknownService
	}
	if tier >= min {
		return nil
	}
	return &AccessDeniedError{
		Tier:     tier,
		Service:  service,
		Required: AtOrAbove(min),
	}
}

// Reserve runs the whole state machine for one request: tier resolution,
// access check, credit hold. Anonymous requesters that pass the access check
// proceed without a hold (there is no account to bill); identified
// requesters get an atomic debit.
func (g *Gate) Reserve(ctx context.Context, requesterID *uuid.UUID, service string) (*Reservation, Tier, error) {
	tier, err := g.ResolveTier(ctx, requesterID)
	if err != nil {
		return nil, TierTrial, err
	}

	if err := g.CheckAccess(tier, service); err != nil {
		return nil, tier, err
	}

	cost := g.schedule.Cost(service)
	if requesterID == nil || cost == 0 {
		return nil, tier, nil
	}

	unlock := g.lockRequester(*requesterID)
	defer unlock()

	entry, err := g.ledger.Debit(ctx, *requesterID, tier, cost, "reserve:"+service)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredit) {
			return nil, tier, ErrInsufficientCredit
		}
		return nil, tier, err
	}

	g.logger.Info("credit reserved", "requester", *requesterID, "service", service, "cost", cost)
	return &Reservation{
		RequesterID: *requesterID,
		Tier:        tier,
		Service:     service,
		Cost:        cost,
		EntryID:     entry.ID,
	}, tier, nil
}

// Confirm turns the hold into a final charge.
func (g *Gate) Confirm(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	if err := g.ledger.RelabelEntry(ctx, res.EntryID, "charge:"+res.Service); err != nil {
		return err
	}
	g.logger.Info("credit charged", "requester", res.RequesterID, "service", res.Service, "cost", res.Cost)
	return nil
}

// Release refunds the hold with a compensating entry, leaving a net delta of
// zero for the attempt.
func (g *Gate) Release(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}

	unlock := g.lockRequester(res.RequesterID)
	defer unlock()

	if _, err := g.ledger.Credit(ctx, res.RequesterID, res.Tier, res.Cost, "release:"+res.Service); err != nil {
		return err
	}
	g.logger.Info("credit released", "requester", res.RequesterID, "service", res.Service, "cost", res.Cost)
	return nil
}

func (g *Gate) lockRequester(requesterID uuid.UUID) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	lock, ok := g.locks[requesterID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[requesterID] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
