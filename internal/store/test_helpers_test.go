package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/streakgate/internal/harness"
)

// createTestStore creates a new file-backed store under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

// createTestRun creates a run started offset minutes after testEpoch.
func createTestRun(id string, offset int, failures ...harness.Failure) Run {
	started := testEpoch.Add(time.Duration(offset) * time.Minute)
	failed := 0
	if len(failures) > 0 {
		failed = 1
	}
	return Run{
		ID:          id,
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		BaseURL:     "http://localhost:3000",
		Scenarios:   []string{"sweep", "grace"},
		Cases:       66,
		FailedCases: failed,
		Pass:        len(failures) == 0,
		TraceDigest: "abc123",
		Failures:    failures,
	}
}
