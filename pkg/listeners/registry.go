// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package listeners provides ready-made packet listeners for the connector
// and a registry that builds them by kind name from configuration.
package listeners

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Property keys understood by the built-in listeners
const (
	PropTypes  = "types"  // comma-separated packet type names, default ANY
	PropPath   = "path"   // recorder output file
	PropAppend = "append" // recorder appends instead of truncating when "true"
	PropFormat = "format" // printer format: full, short or hex
)

// ErrUnknownKind is returned for a listener kind with no constructor
var ErrUnknownKind = errors.New("unknown listener kind")

// Constructor builds a fresh listener instance
type Constructor func(log zerolog.Logger) connector.PacketListener

// Registry maps listener kind names to constructors. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Constructor
}

// NewRegistry creates a registry with the built-in kinds "printer",
// "recorder" and "validator" registered
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Constructor)}
	r.Register("printer", func(zerolog.Logger) connector.PacketListener { return NewPrinter(nil) })
	r.Register("recorder", func(log zerolog.Logger) connector.PacketListener { return NewRecorder(log) })
	r.Register("validator", func(log zerolog.Logger) connector.PacketListener { return NewValidator(log) })
	return r
}

// Register adds a constructor for kind, replacing any existing one
func (r *Registry) Register(kind string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[strings.ToLower(kind)] = c
}

// New builds a listener of the given kind
func (r *Registry) New(kind string, log zerolog.Logger) (connector.PacketListener, error) {
	r.mu.RLock()
	c, ok := r.kinds[strings.ToLower(kind)]
	r.mu.RUnlock()
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return c(log), nil
}

// Kinds returns the registered kind names, sorted
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ParseTypes parses a comma-separated list of packet type names or codes.
// An empty list subscribes to every type.
func ParseTypes(s string) ([]esp3.PacketType, error) {
	if strings.TrimSpace(s) == "" {
		return []esp3.PacketType{esp3.TypeAny}, nil
	}
	var types []esp3.PacketType
	for _, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		t, err := esp3.ParsePacketType(field)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return []esp3.PacketType{esp3.TypeAny}, nil
	}
	return types, nil
}

// typesFrom reads PropTypes from props
func typesFrom(props connector.Properties) ([]esp3.PacketType, error) {
	types, err := ParseTypes(props.Get(PropTypes, ""))
	if err != nil {
		return nil, fmt.Errorf("invalid %s property: %w", PropTypes, err)
	}
	return types, nil
}
