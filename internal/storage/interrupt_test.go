package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/deidaraiorek/codeindex/internal/errdefs"
)

// countTo runs a statement that takes about n steps to finish.
func (idb *IndexDB) countTo(ctx context.Context, n int64) (int64, error) {
	ctx, cancel := idb.withInterrupt(ctx)
	defer cancel()

	var count int64
	err := idb.db.QueryRowContext(ctx,
		"WITH RECURSIVE seq(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM seq WHERE x < ?) SELECT COUNT(*) FROM seq",
		n).Scan(&count)
	return count, idb.wrapErr("count", err)
}

func TestInterruptAbortsRunningStatement(t *testing.T) {
	idb, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to create index DB: %v", err)
	}
	defer idb.Close()

	done := make(chan error, 1)
	go func() {
		_, err := idb.countTo(context.Background(), 1<<40)
		done <- err
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var runErr error
wait:
	for {
		select {
		case runErr = <-done:
			break wait
		case <-ticker.C:
			idb.Interrupt()
		case <-time.After(30 * time.Second):
			t.Fatal("Statement was not interrupted")
		}
	}

	if kind := errdefs.Classify(runErr); kind != errdefs.KindCancelled {
		t.Fatalf("Expected a cancelled statement, got %v (%v)", kind, runErr)
	}

	// the connection is usable again after the interrupt
	n, err := idb.countTo(context.Background(), 10)
	if err != nil {
		t.Fatalf("Statement after interrupt failed: %v", err)
	}
	if n != 10 {
		t.Errorf("Expected 10, got %d", n)
	}
	if _, err := idb.Stats(context.Background()); err != nil {
		t.Errorf("Stats after interrupt failed: %v", err)
	}
}

func TestInterruptDoesNotAffectLaterStatements(t *testing.T) {
	idb, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to create index DB: %v", err)
	}
	defer idb.Close()

	idb.Interrupt()
	n, err := idb.countTo(context.Background(), 100)
	if err != nil {
		t.Fatalf("Statement after interrupt failed: %v", err)
	}
	if n != 100 {
		t.Errorf("Expected 100, got %d", n)
	}
}
