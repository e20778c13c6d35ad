// Package backend models the availability of an optional remote backend and
// the single primary-then-secondary policy used by the stores.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/together/internal/domain"
	"github.com/MrSnakeDoc/together/internal/logger"
)

// Kind is the availability of a backend at probe time.
type Kind int

const (
	Unconfigured Kind = iota
	Connected
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Unreachable:
		return "unreachable"
	default:
		return "unconfigured"
	}
}

// State is the result of one liveness probe. Err is set only when Kind is
// Unreachable.
type State struct {
	Kind Kind
	Err  error
}

func (s State) Usable() bool { return s.Kind == Connected }

// Pinger is anything that can answer a cheap liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 2 * time.Second

// Probe checks p once. A nil p is Unconfigured.
func Probe(ctx context.Context, p Pinger, timeout time.Duration) State {
	if p == nil {
		return State{Kind: Unconfigured}
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Ping(pctx); err != nil {
		return State{Kind: Unreachable, Err: err}
	}
	return State{Kind: Connected}
}

// Step is one side of a fallback: a named operation and the state of the
// backend it runs against.
type Step[T any] struct {
	Name  string
	State State
	Run   func(ctx context.Context) (T, error)
}

// Fallback runs primary when its backend is connected and, if it is
// skipped or fails, runs secondary. Validation errors from primary are
// returned as-is. When both sides fail the secondary error is returned
// with the primary failure attached as context, except that a record
// missing from the secondary is reported as unavailable, not missing,
// while the primary could not be asked.
func Fallback[T any](ctx context.Context, log logger.Logger, op string, primary, secondary Step[T]) (T, error) {
	var primaryErr error

	switch primary.State.Kind {
	case Connected:
		v, err := primary.Run(ctx)
		if err == nil {
			return v, nil
		}
		if domain.IsValidation(err) {
			return v, err
		}
		primaryErr = err
		if domain.IsNotFound(err) {
			log.Debug("primary backend has no such record, trying secondary",
				logger.String("op", op),
				logger.String("primary", primary.Name),
				logger.String("secondary", secondary.Name))
		} else {
			log.Warn("primary backend failed, falling back",
				logger.String("op", op),
				logger.String("primary", primary.Name),
				logger.String("secondary", secondary.Name),
				logger.Error(err))
		}
	case Unreachable:
		primaryErr = domain.Unavailable(primary.Name, primary.State.Err)
		log.Warn("primary backend unreachable, falling back",
			logger.String("op", op),
			logger.String("primary", primary.Name),
			logger.String("secondary", secondary.Name),
			logger.Error(primary.State.Err))
	}

	v, err := secondary.Run(ctx)
	if err == nil {
		return v, nil
	}
	if primaryErr != nil && !domain.IsNotFound(primaryErr) {
		if domain.IsNotFound(err) {
			if !domain.IsUnavailable(primaryErr) {
				primaryErr = domain.Unavailable(primary.Name, primaryErr)
			}
			return v, fmt.Errorf("%s: %w (secondary: %v)", op, primaryErr, err)
		}
		log.Error("both backends failed",
			logger.String("op", op),
			logger.String("primary", primary.Name),
			logger.String("secondary", secondary.Name),
			logger.Error(errors.Join(primaryErr, err)))
		return v, fmt.Errorf("%s: %w (primary: %v)", op, err, primaryErr)
	}
	return v, fmt.Errorf("%s: %w", op, err)
}
