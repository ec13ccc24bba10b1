package sheetsync

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/frotaworks/fleet_backend/models"
)

func TestRunOutcome(t *testing.T) {
	writeErr := errors.New("quota exceeded")
	cases := []struct {
		name    string
		summary *Summary
		err     error
		want    string
	}{
		{"clean run", &Summary{TotalOrders: 10, RowsWritten: 10, Chunks: 1}, nil, models.SyncRunStatusSuccess},
		{"failure before clear", nil, writeErr, models.SyncRunStatusFailed},
		{"failure mid-write", &Summary{TotalOrders: 1234, RowsWritten: 500, Chunks: 1}, writeErr, models.SyncRunStatusPartial},
		{"failure on first chunk after clear", &Summary{TotalOrders: 1234, RowsWritten: 0, Chunks: 0}, writeErr, models.SyncRunStatusPartial},
	}
	for _, c := range cases {
		status, message := runOutcome(c.summary, c.err)
		if status != c.want {
			t.Fatalf("%s: status = %q, want %q", c.name, status, c.want)
		}
		if c.err != nil && message != c.err.Error() {
			t.Fatalf("%s: message = %q, want the error text", c.name, message)
		}
	}
}

func TestFirstChunkFailureIsPartial(t *testing.T) {
	store := newFakeStore(testHeader)
	store.failChunk = 0
	engine := newTestEngine(store, makeOrders(100))

	summary, err := engine.Run(context.Background())
	if err == nil {
		t.Fatal("Run succeeded, want first-chunk failure")
	}
	if summary == nil || summary.RowsWritten != 0 {
		t.Fatalf("summary = %+v, want zero rows written", summary)
	}

	// The clear already emptied the destination, so the run must not read
	// as "destination untouched".
	status, _ := runOutcome(summary, err)
	if status != models.SyncRunStatusPartial {
		t.Fatalf("status = %q, want partial after the clear has run", status)
	}
}
