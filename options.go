// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lthread

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// schedOptions holds configuration options for Sched creation.
type schedOptions struct {
	stackSize      int
	defaultTimeout time.Duration
	maxEvents      int
	logger         *logiface.Logger[logiface.Event]
}

// SchedOption configures a Sched instance.
type SchedOption interface {
	applySched(*schedOptions) error
}

// schedOptionImpl implements SchedOption.
type schedOptionImpl struct {
	applySchedFunc func(*schedOptions) error
}

func (o *schedOptionImpl) applySched(opts *schedOptions) error {
	return o.applySchedFunc(opts)
}

// WithStackSize sets the per-lthread stack size hint. Zero selects
// DefaultStackSize. Goroutine stacks grow on demand, so the value is
// recorded for introspection rather than applied as an allocation size.
func WithStackSize(size int) SchedOption {
	return &schedOptionImpl{func(opts *schedOptions) error {
		if size < 0 {
			return fmt.Errorf(`lthread: negative stack size %d`, size)
		}
		opts.stackSize = size
		return nil
	}}
}

// WithDefaultTimeout bounds how long the scheduler blocks in a poll when no
// wake deadline is pending. Zero selects the built-in default.
func WithDefaultTimeout(d time.Duration) SchedOption {
	return &schedOptionImpl{func(opts *schedOptions) error {
		if d < 0 {
			return fmt.Errorf(`lthread: negative default timeout %s`, d)
		}
		opts.defaultTimeout = d
		return nil
	}}
}

// WithMaxEvents sets the poll batch size. Zero selects the built-in default.
func WithMaxEvents(n int) SchedOption {
	return &schedOptionImpl{func(opts *schedOptions) error {
		if n < 0 {
			return fmt.Errorf(`lthread: negative max events %d`, n)
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithLogger sets the structured logger for the scheduler. A nil logger
// disables logging; the default is the package-level logger, see SetLogger.
func WithLogger(logger *logiface.Logger[logiface.Event]) SchedOption {
	return &schedOptionImpl{func(opts *schedOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveSchedOptions applies SchedOption instances to schedOptions.
func resolveSchedOptions(opts []SchedOption) (*schedOptions, error) {
	cfg := &schedOptions{
		stackSize:      DefaultStackSize,
		defaultTimeout: defaultIOTimeout,
		maxEvents:      defaultMaxEvents,
		logger:         defaultLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySched(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.stackSize == 0 {
		cfg.stackSize = DefaultStackSize
	}
	if cfg.defaultTimeout == 0 {
		cfg.defaultTimeout = defaultIOTimeout
	}
	if cfg.maxEvents == 0 {
		cfg.maxEvents = defaultMaxEvents
	}
	return cfg, nil
}
