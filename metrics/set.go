// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// set is a registry of named metrics backed by a prometheus registry.
type set struct {
	mu          sync.Mutex
	registry    *prometheus.Registry
	counters    map[string]prometheus.Counter
	counterVecs map[string]*prometheus.CounterVec
}

func newSet() *set {
	return &set{
		registry:    prometheus.NewRegistry(),
		counters:    make(map[string]prometheus.Counter),
		counterVecs: make(map[string]*prometheus.CounterVec),
	}
}

var defaultSet = newSet()

func helpOf(name string, help []string) string {
	if len(help) > 0 {
		return help[0]
	}
	return name
}

func (s *set) GetOrCreateCounter(name string, help ...string) (prometheus.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c, nil
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpOf(name, help)})
	if err := s.registry.Register(c); err != nil {
		return nil, err
	}
	s.counters[name] = c
	return c, nil
}

func (s *set) GetOrCreateCounterVec(name string, labels []string, help ...string) (*prometheus.CounterVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cv, ok := s.counterVecs[name]; ok {
		return cv, nil
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: helpOf(name, help)}, labels)
	if err := s.registry.Register(cv); err != nil {
		return nil, err
	}
	s.counterVecs[name] = cv
	return cv, nil
}

// snapshot flattens every metric of the set into "name{label=value}" keys.
func (s *set) snapshot() (map[string]float64, error) {
	families, err := s.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, l := range labels {
					parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
				}
				sort.Strings(parts)
				key += "{"
				for i, p := range parts {
					if i > 0 {
						key += ","
					}
					key += p
				}
				key += "}"
			}
			if c := m.GetCounter(); c != nil {
				out[key] = c.GetValue()
			} else if g := m.GetGauge(); g != nil {
				out[key] = g.GetValue()
			}
		}
	}
	return out, nil
}
