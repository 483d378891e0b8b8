// Package integrity verifies curriculum artifacts against a trusted manifest.
//
// A run is a fixed, ordered list of stages:
//
//  1. source fingerprint
//  2. embeddings fingerprint
//  3. remote record count
//
// The first failing stage halts the run; later stages are never executed. A
// stage may also be skipped, which is reported as a warning and never fails
// the run on its own. The remote count stage skips when its oracle is
// unavailable.
//
// A manifest that is missing or malformed fails the run before any stage is
// executed, with a configuration finding rather than a violation.
package integrity
