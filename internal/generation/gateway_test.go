package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubCapability struct {
	calls       atomic.Int32
	description string
	imageRef    string
	err         error
	block       bool
}

func (s *stubCapability) GenerateShot(ctx context.Context, promptText string, garmentRefs []string) (string, string, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	return s.description, s.imageRef, s.err
}

type stubTerminalError struct{ msg string }

func (e *stubTerminalError) Error() string  { return e.msg }
func (e *stubTerminalError) Terminal() bool { return true }

func TestGatewaySuccess(t *testing.T) {
	cap := &stubCapability{description: "a look", imageRef: "data:image/png;base64,AAAA"}
	g := NewGateway(GatewayOptions{Capability: cap})

	res := g.Generate(context.Background(), "prompt", []string{"ref"})
	require.Equal(t, StatusSucceeded, res.Status)
	require.Equal(t, "a look", res.Description)
	require.Equal(t, "data:image/png;base64,AAAA", res.ImageRef)
	require.True(t, res.Terminal)
	require.Equal(t, ErrorKindNone, res.ErrorKind)
	require.Equal(t, int32(1), cap.calls.Load())
}

func TestGatewayTimeoutIsNotTerminal(t *testing.T) {
	cap := &stubCapability{block: true}
	g := NewGateway(GatewayOptions{Capability: cap, Timeout: 20 * time.Millisecond})

	res := g.Generate(context.Background(), "prompt", nil)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, ErrorKindTimeout, res.ErrorKind)
	require.False(t, res.Terminal)
	require.Equal(t, int32(1), cap.calls.Load(), "no retry on timeout")
}

func TestGatewayTerminalUpstreamFailure(t *testing.T) {
	cap := &stubCapability{err: &stubTerminalError{msg: "prompt blocked"}}
	g := NewGateway(GatewayOptions{Capability: cap})

	res := g.Generate(context.Background(), "prompt", nil)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, ErrorKindUpstream, res.ErrorKind)
	require.True(t, res.Terminal)
	require.Contains(t, res.Diagnostic, "prompt blocked")
	require.Equal(t, int32(1), cap.calls.Load(), "no retry on upstream failure")
}

func TestGatewayTransportFailureIsNotTerminal(t *testing.T) {
	cap := &stubCapability{err: errors.New("connection reset")}
	g := NewGateway(GatewayOptions{Capability: cap})

	res := g.Generate(context.Background(), "prompt", nil)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, ErrorKindUpstream, res.ErrorKind)
	require.False(t, res.Terminal)
}

func TestGatewayEmptyResultIsTerminalFailure(t *testing.T) {
	cap := &stubCapability{}
	g := NewGateway(GatewayOptions{Capability: cap})

	res := g.Generate(context.Background(), "prompt", nil)
	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, ErrorKindUpstream, res.ErrorKind)
	require.True(t, res.Terminal)
}
