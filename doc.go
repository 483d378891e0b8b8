// Package sentinel verifies a curriculum content pipeline against trusted state.
//
// Sentinel composes two independent checks into one suite:
//
//   - Integrity: the curriculum source and its derived embeddings are
//     fingerprinted (SHA-256) and compared with a trusted manifest, then the
//     live record count of the remote store is compared with the manifest's
//     expected count. The first failing stage halts the check.
//   - Drift: every entity of a golden embedding snapshot is compared with its
//     current embedding by cosine similarity. Entities scoring below the
//     threshold (0.85 by default) are critical.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore(".")
//	suite, _ := sentinel.New(store,
//	    sentinel.WithOracle(wrangler.New()),
//	    sentinel.WithLogger(sentinel.NewTextLogger(slog.LevelInfo)),
//	)
//	out := suite.Run(ctx)
//	_ = report.TextRenderer{}.Render(os.Stdout, out.Results...)
//	os.Exit(out.ExitCode())
//
// # Failure Classes
//
// Every failing finding carries a class so operators can tell "could not
// check" apart from "checked and found bad":
//
//	CONFIGURATION        missing or malformed input          exit 2
//	INTEGRITY_VIOLATION  fingerprint or count mismatch       exit 1
//	DRIFT_VIOLATION      similarity below threshold          exit 1
//	MISSING_ENTITY       baseline entity absent from current exit 1
//	ORACLE_UNAVAILABLE   remote count skipped (warning only) exit 0
//	INTERNAL             unexpected read or runtime failure  exit 10
//
// # Kill Switch
//
// A suite created with WithEnabled(false) reports every check as skipped and
// exits 0, so a scheduled run can be disabled without editing the schedule.
package sentinel
