package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	perrors "github.com/drblury/protogate/internal/runtime/errors"
)

// ErrGateUnavailable is wrapped by every failure to acquire the PublishGate.
var ErrGateUnavailable = errors.New("publish gate unavailable")

// PublishGate serializes access to the single bus publisher of the process.
//
// A panic inside a holder poisons the gate: every later WithLock fails with
// ErrGateUnavailable instead of publishing through a handle left in an
// unknown state.
type PublishGate struct {
	publisher message.Publisher
	sem       chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	poisoned  atomic.Bool
}

// NewPublishGate wraps publisher.
func NewPublishGate(publisher message.Publisher) (*PublishGate, error) {
	if publisher == nil {
		return nil, perrors.ErrPublisherRequired
	}
	return &PublishGate{
		publisher: publisher,
		sem:       make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// WithLock runs fn with exclusive access to the publisher. It waits for the
// current holder unless ctx ends or the gate is closed first.
func (g *PublishGate) WithLock(ctx context.Context, fn func(message.Publisher) error) (err error) {
	select {
	case <-g.done:
		return fmt.Errorf("%w: gate closed", ErrGateUnavailable)
	default:
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrGateUnavailable, ctx.Err())
	case <-g.done:
		return fmt.Errorf("%w: gate closed", ErrGateUnavailable)
	}
	defer func() { <-g.sem }()

	if g.poisoned.Load() {
		return fmt.Errorf("%w: gate poisoned by an earlier failure", ErrGateUnavailable)
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned.Store(true)
			err = fmt.Errorf("%w: publisher panicked: %v", ErrGateUnavailable, r)
		}
	}()

	return fn(g.publisher)
}

// Poisoned reports whether a holder panicked.
func (g *PublishGate) Poisoned() bool {
	return g.poisoned.Load()
}

// Close rejects every later WithLock. The current holder, if any, finishes.
func (g *PublishGate) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}
