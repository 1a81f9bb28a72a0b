package pipeline

import (
	"reflect"
	"runtime"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MemorySnapshot captures process memory at a stage boundary. Captured
// reports whether the read succeeded; when false the delta sub-fields are
// omitted rather than failing the stage.
type MemorySnapshot struct {
	Sys       uint64 `json:"sys"`
	HeapAlloc uint64 `json:"heap_alloc"`
	HeapSys   uint64 `json:"heap_sys"`
	Captured  bool   `json:"captured"`
}

// MemoryDelta is the signed change across a stage invocation; a stage may
// free memory.
type MemoryDelta struct {
	Sys       int64 `json:"sys"`
	HeapAlloc int64 `json:"heap_alloc"`
	HeapSys   int64 `json:"heap_sys"`
}

// StageMetrics is the per-invocation detail recorded for each stage name
// (last value wins on repeats).
type StageMetrics struct {
	Duration   time.Duration  `json:"duration"`
	InputSize  int            `json:"input_size"`
	OutputSize int            `json:"output_size"`
	MemBefore  MemorySnapshot `json:"mem_before"`
	MemAfter   MemorySnapshot `json:"mem_after"`
	MemDelta   MemoryDelta    `json:"mem_delta"`
}

// snapshotMemory reads runtime memory counters. Measurement must never
// abort a stage, so any panic degrades to an empty snapshot.
func snapshotMemory() (snap MemorySnapshot) {
	defer func() {
		if r := recover(); r != nil {
			snap = MemorySnapshot{}
		}
	}()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemorySnapshot{
		Sys:       ms.Sys,
		HeapAlloc: ms.HeapAlloc,
		HeapSys:   ms.HeapSys,
		Captured:  true,
	}
}

// memoryDelta computes the signed change between two snapshots. A delta
// with either side missing is all zeroes.
func memoryDelta(before, after MemorySnapshot) MemoryDelta {
	if !before.Captured || !after.Captured {
		return MemoryDelta{}
	}
	return MemoryDelta{
		Sys:       int64(after.Sys) - int64(before.Sys),
		HeapAlloc: int64(after.HeapAlloc) - int64(before.HeapAlloc),
		HeapSys:   int64(after.HeapSys) - int64(before.HeapSys),
	}
}

// sizeOf reports a context value's cardinality: a Sizer's own count when
// implemented, the reflected length of slices, maps, strings, arrays and
// channels otherwise, 0 for nil and 1 for everything else. A panicking
// Sizer degrades to the reflection path.
func sizeOf(v interface{}) int {
	if v == nil {
		return 0
	}
	if n, ok := safeSizer(v); ok {
		return n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array, reflect.Chan:
		return rv.Len()
	case reflect.Ptr:
		if rv.IsNil() {
			return 0
		}
		elem := rv.Elem()
		switch elem.Kind() {
		case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
			return elem.Len()
		}
		return 1
	default:
		return 1
	}
}

// safeSizer calls a user Size() behind a recover so a panicking
// implementation cannot abort the stage.
func safeSizer(v interface{}) (n int, ok bool) {
	sizer, is := v.(Sizer)
	if !is {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			n, ok = 0, false
		}
	}()
	return sizer.Size(), true
}

// finalize closes out run-level aggregates from the recorded stage
// durations: total, average, and p50/p95 quantiles over all invocations.
func finalize(stats *Statistics, invocations []time.Duration) {
	stats.EndTime = time.Now()

	if len(invocations) == 0 {
		return
	}

	var total time.Duration
	samples := make([]float64, len(invocations))
	for i, d := range invocations {
		total += d
		samples[i] = float64(d)
	}
	sort.Float64s(samples)

	stats.TotalDuration = total
	stats.AverageDuration = total / time.Duration(len(invocations))
	stats.DurationP50 = time.Duration(stat.Quantile(0.50, stat.Empirical, samples, nil))
	stats.DurationP95 = time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil))
}
