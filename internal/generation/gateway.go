package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// terminalError is implemented by capability errors that carry a final
// upstream verdict (as opposed to timeouts and transport failures).
type terminalError interface {
	error
	Terminal() bool
}

type GatewayOptions struct {
	Capability Capability
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Gateway owns the single outbound call to the generation capability. It
// never retries and never returns an error for expected failure modes; every
// invocation ends in a terminal Result.
type Gateway struct {
	capability Capability
	timeout    time.Duration
	logger     *slog.Logger
}

func NewGateway(opts GatewayOptions) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Gateway{
		capability: opts.Capability,
		timeout:    timeout,
		logger:     logger,
	}
}

func (g *Gateway) Generate(ctx context.Context, promptText string, garmentRefs []string) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	description, imageRef, err := g.capability.GenerateShot(ctx, promptText, garmentRefs)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("capability call timed out", "after", elapsed)
			return Result{
				Status:     StatusFailed,
				ErrorKind:  ErrorKindTimeout,
				Diagnostic: "capability call exceeded " + g.timeout.String(),
			}
		}

		var term terminalError
		if errors.As(err, &term) && term.Terminal() {
			g.logger.Warn("capability returned terminal failure", "err", err, "dur_ms", elapsed.Milliseconds())
			return Result{
				Status:     StatusFailed,
				ErrorKind:  ErrorKindUpstream,
				Terminal:   true,
				Diagnostic: err.Error(),
			}
		}

		g.logger.Warn("capability call failed", "err", err, "dur_ms", elapsed.Milliseconds())
		return Result{
			Status:     StatusFailed,
			ErrorKind:  ErrorKindUpstream,
			Diagnostic: err.Error(),
		}
	}

	if description == "" && imageRef == "" {
		// HTTP success with nothing usable in it is still a terminal answer.
		g.logger.Warn("capability returned empty result", "dur_ms", elapsed.Milliseconds())
		return Result{
			Status:     StatusFailed,
			ErrorKind:  ErrorKindUpstream,
			Terminal:   true,
			Diagnostic: "capability returned neither image nor description",
		}
	}

	g.logger.Info("capability call succeeded", "dur_ms", elapsed.Milliseconds(), "has_image", imageRef != "")
	return Result{
		Status:      StatusSucceeded,
		ImageRef:    imageRef,
		Description: description,
		Terminal:    true,
	}
}
