// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	hooks          Hooks
	logger         *logiface.Logger[logiface.Event]
	logRates       map[time.Duration]int
	name           string
	stackSize      int
	useCaller      bool
	loggerSet      bool
	metricsEnabled bool
}

// --- Scheduler Options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithName sets the scheduler's display name, used in logs and as the
// prefix of its worker thread names.
func WithName(name string) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.name = name
		return nil
	}}
}

// WithUseCaller sets whether the goroutine that constructs the scheduler
// participates as one of its workers (default true). When it does, one
// fewer thread is spawned, and that goroutine runs its share of the work
// from within Stop.
func WithUseCaller(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.useCaller = enabled
		return nil
	}}
}

// WithHooks replaces the tickle, idle and stopping behavior.
// The default is SpinHooks.
func WithHooks(hooks Hooks) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if hooks == nil {
			return ErrNilHooks
		}
		opts.hooks = hooks
		return nil
	}}
}

// WithLogger sets the scheduler's logger. The default is the package logger
// (see SetLogger). A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		opts.loggerSet = true
		return nil
	}}
}

// WithStackSize sets the stack size of the fibers the scheduler creates
// to run plain callables.
func WithStackSize(size int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidStackSize, size)
		}
		opts.stackSize = size
		return nil
	}}
}

// WithLogRate limits how often each kind of high frequency trace line
// (tickle, idle) is logged, per category, see catrate.NewLimiter. A nil map
// removes the limit.
func WithLogRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *schedulerOptions) (err error) {
		if rates != nil {
			// validated up front, NewLimiter panics on invalid rates
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fiber: invalid log rates: %v", r)
				}
			}()
			catrate.NewLimiter(rates)
		}
		opts.logRates = rates
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Scheduler.
// When enabled, metrics can be accessed via Scheduler.Metrics().
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		name:      "scheduler",
		useCaller: true,
		hooks:     SpinHooks{},
		logRates: map[time.Duration]int{
			time.Second: 10,
			time.Minute: 100,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.loggerSet {
		cfg.logger = getLogger()
	}
	return cfg, nil
}

// --- Fiber Options ---

// fiberOptions holds configuration options for Fiber creation.
type fiberOptions struct {
	stackSize int
	useCaller bool
}

// FiberOption configures a Fiber instance.
type FiberOption interface {
	applyFiber(*fiberOptions) error
}

// fiberOptionImpl implements FiberOption.
type fiberOptionImpl struct {
	applyFiberFunc func(*fiberOptions) error
}

func (o *fiberOptionImpl) applyFiber(opts *fiberOptions) error {
	return o.applyFiberFunc(opts)
}

// WithFiberStackSize sets the fiber's stack size. The default is the value
// of the fiber.stack_size config var.
func WithFiberStackSize(size int) FiberOption {
	return &fiberOptionImpl{func(opts *fiberOptions) error {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidStackSize, size)
		}
		opts.stackSize = size
		return nil
	}}
}

// WithFiberUseCaller marks the fiber as running on behalf of the goroutine
// that resumes it, see Fiber.UseCaller.
func WithFiberUseCaller(enabled bool) FiberOption {
	return &fiberOptionImpl{func(opts *fiberOptions) error {
		opts.useCaller = enabled
		return nil
	}}
}

// resolveFiberOptions applies FiberOption instances to fiberOptions.
func resolveFiberOptions(opts []FiberOption) (*fiberOptions, error) {
	cfg := &fiberOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyFiber(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
