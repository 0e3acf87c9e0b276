// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package listeners

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Validator checks every received packet with esp3.ValidatePacket and logs
// the anomalies it finds
type Validator struct {
	log zerolog.Logger

	mu        sync.Mutex
	types     []esp3.PacketType
	checked   uint64
	anomalies map[esp3.AnomalyType]uint64
}

// NewValidator creates a validator logging to log
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log:       log.With().Str("listener", "validator").Logger(),
		types:     []esp3.PacketType{esp3.TypeAny},
		anomalies: make(map[esp3.AnomalyType]uint64),
	}
}

// Initialize reads the types property and resets the counters
func (v *Validator) Initialize(props connector.Properties, _ connector.Outbox) error {
	types, err := typesFrom(props)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.types = types
	v.checked = 0
	v.anomalies = make(map[esp3.AnomalyType]uint64)
	return nil
}

// Close keeps the counters for a final report
func (v *Validator) Close() {}

// ReceivePacket validates m
func (v *Validator) ReceivePacket(m esp3.Message) {
	errs := esp3.ValidatePacket(m)

	v.mu.Lock()
	v.checked++
	for _, e := range errs {
		v.anomalies[e.Type]++
	}
	v.mu.Unlock()

	for _, e := range errs {
		v.log.Warn().
			Str("type", esp3.FormatPacketType(m.Type())).
			Str("anomaly", e.Type.String()).
			Fields(e.Details).
			Msg(e.Message)
	}
}

// SupportedPackets returns the configured types
func (v *Validator) SupportedPackets() []esp3.PacketType {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.types
}

// Checked returns the number of packets validated since Initialize
func (v *Validator) Checked() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checked
}

// Anomalies returns a copy of the per-type anomaly counts
func (v *Validator) Anomalies() map[esp3.AnomalyType]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[esp3.AnomalyType]uint64, len(v.anomalies))
	for k, n := range v.anomalies {
		out[k] = n
	}
	return out
}
