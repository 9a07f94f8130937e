// Copyright 2015 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package stats

import "runtime"

// MemStatsWrapper exposes a subset of runtime.MemStats suitable for
// flattening into the JSON stats endpoint.
type MemStatsWrapper struct {
	*runtime.MemStats
	verbose bool
}

// NewMemStatsWrapper returns a MemStatsWrapper. Update calls
// runtime.ReadMemStats in both modes; when verbose is true it keeps the
// full MemStats, and when false it copies only HeapAlloc, HeapInuse and
// NumGC into the wrapped struct.
func NewMemStatsWrapper(verbose bool) *MemStatsWrapper {
	w := &MemStatsWrapper{MemStats: &runtime.MemStats{}, verbose: verbose}
	w.Update()
	return w
}

// Update refreshes the wrapped MemStats.
func (w *MemStatsWrapper) Update() {
	if w.verbose {
		runtime.ReadMemStats(w.MemStats)
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	w.MemStats.HeapAlloc = m.HeapAlloc
	w.MemStats.HeapInuse = m.HeapInuse
	w.MemStats.NumGC = m.NumGC
}
