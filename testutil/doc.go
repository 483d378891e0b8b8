// Package testutil provides testing utilities for Sentinel.
//
// This package is intended for use in tests only. It generates reproducible
// embedding fixtures for drift checks.
//
//	rng := testutil.NewRNG(seed)
//	baseline := rng.Snapshot([]string{"L1", "L2"}, 384)
//	current := rng.Drift(baseline, 0.01) // near-identical copy
package testutil
