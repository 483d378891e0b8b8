// Package drift detects semantic drift of entity embeddings.
//
// A golden snapshot (the baseline) records a reference vector per entity.
// The current vectors are compared against it with cosine similarity; an
// entity whose similarity falls below the threshold is critical, and any
// critical entity fails the run.
//
// Every baseline entity is scored, even after a critical one is found, so
// the report always lists the full set. Entities that only exist in the
// current snapshot are ignored.
package drift
