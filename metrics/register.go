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

	"github.com/prometheus/client_golang/prometheus"
)

// GetOrCreateCounter returns registered counter with the given name
// or creates new counter if the registry doesn't contain counter with
// the given name.
//
// The returned counter is safe to use from concurrent goroutines.
func GetOrCreateCounter(name string, help ...string) Counter {
	c, err := defaultSet.GetOrCreateCounter(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}

	return &counter{c}
}

// GetOrCreateCounterVec returns registered CounterVec with the given name
// or creates a new CounterVec if the registry doesn't contain a CounterVec with
// the given name and labels.
//
// The returned CounterVec is safe to use from concurrent goroutines.
func GetOrCreateCounterVec(name string, labels []string, help ...string) *prometheus.CounterVec {
	cv, err := defaultSet.GetOrCreateCounterVec(name, labels, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new countervec: %w", err))
	}

	return cv
}

// Registry returns the prometheus registry holding every metric of the
// process, for exposition.
func Registry() *prometheus.Registry {
	return defaultSet.registry
}

// Snapshot returns the current value of every registered counter and gauge.
func Snapshot() (map[string]float64, error) {
	return defaultSet.snapshot()
}
