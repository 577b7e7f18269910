// Package testutil provides testing utilities for pagearena.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, goroutine-safe RNG with helpers for generating
// allocator workloads.
//
//	rng := testutil.NewRNG(seed)
//	size := rng.PageRequest(4096, 64) // 1..64 pages, skewed toward small
//	rng.Reset()                       // replay the same sequence
package testutil
