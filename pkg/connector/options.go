// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Default loop intervals
const (
	DefaultIOInterval       = 10 * time.Millisecond
	DefaultPortPollInterval = time.Second
)

type options struct {
	log            zerolog.Logger
	decodeInterval time.Duration
	ioInterval     time.Duration
	pollInterval   time.Duration
	workers        int
	outboundLimit  int
	retain         bool
	factory        *esp3.Factory
}

func defaultOptions() options {
	return options{
		log:            zerolog.Nop(),
		decodeInterval: DefaultDecodeInterval,
		ioInterval:     DefaultIOInterval,
		pollInterval:   DefaultPortPollInterval,
		workers:        DefaultDispatchWorkers,
	}
}

// Option configures a Connector
type Option func(*options)

// WithLogger sets the logger used by every connector component
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDecodeInterval sets the pause between decode passes
func WithDecodeInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.decodeInterval = d
		}
	}
}

// WithIOInterval sets the pause used by the read and write loops when idle
func WithIOInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ioInterval = d
		}
	}
}

// WithPortPollInterval sets how often available ports are listed while idle
func WithPortPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDispatchWorkers sets the size of the packet delivery pool
func WithDispatchWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOutboundLimit caps the outbound packet queue; 0 means unbounded
func WithOutboundLimit(n int) Option {
	return func(o *options) { o.outboundLimit = n }
}

// WithPartialFrameRetention keeps partially received frames across decode
// passes instead of discarding them
func WithPartialFrameRetention() Option {
	return func(o *options) { o.retain = true }
}

// WithFactory sets the packet factory, e.g. one with extension factories
// already registered
func WithFactory(f *esp3.Factory) Option {
	return func(o *options) { o.factory = f }
}
