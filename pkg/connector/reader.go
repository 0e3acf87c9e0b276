// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/esp3"
)

// DefaultDecodeInterval is the pause between decode passes
const DefaultDecodeInterval = 100 * time.Millisecond

// packetReader drains the inbound byte queue through the decoder and hands
// every packet to the distributor. Stop requests are honoured between
// passes.
type packetReader struct {
	decoder  *esp3.Decoder
	dispatch func(esp3.Message)
	interval time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newPacketReader(decoder *esp3.Decoder, dispatch func(esp3.Message), interval time.Duration, log zerolog.Logger) *packetReader {
	if interval <= 0 {
		interval = DefaultDecodeInterval
	}
	return &packetReader{
		decoder:  decoder,
		dispatch: dispatch,
		interval: interval,
		log:      log.With().Str("component", "reader").Logger(),
	}
}

func (r *packetReader) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
}

// halt requests a stop and waits for the current pass to finish
func (r *packetReader) halt() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil
}

func (r *packetReader) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *packetReader) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	r.log.Debug().Dur("interval", r.interval).Msg("decode loop started")
	for {
		if n := r.decoder.Drain(r.dispatch); n > 0 {
			r.log.Trace().Int("packets", n).Msg("decoded packets")
		}
		if !sleep(stop, r.interval) {
			r.log.Debug().Msg("decode loop stopped")
			return
		}
	}
}
