package dashboard

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestSessionsLifecycle(t *testing.T) {
	e, _ := newEngine(t, Options{})
	sessions := NewSessions(e)
	ctx := context.Background()

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" || sess.Snapshot == nil || sess.Snapshot.RowCount != 3 {
		t.Fatalf("Create returned %+v", sess)
	}

	fs := sess.Filter
	fs.States = []string{"New York"}
	updated, err := sessions.SetFilter(ctx, sess.ID, fs)
	if err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	if updated.Snapshot.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", updated.Snapshot.RowCount)
	}
	if !updated.Snapshot.Filter.Equal(fs) {
		t.Error("Snapshot not computed from the new filter")
	}

	got, err := sessions.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Filter.Equal(fs) {
		t.Errorf("Stored filter = %+v", got.Filter)
	}

	if err := sessions.Delete(sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if err := sessions.Delete(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	e, _ := newEngine(t, Options{})
	sessions := NewSessions(e)
	ctx := context.Background()

	a, _ := sessions.Create(ctx)
	b, _ := sessions.Create(ctx)
	if a.ID == b.ID {
		t.Fatal("Session IDs collide")
	}

	fs := a.Filter
	fs.States = []string{}
	if _, err := sessions.SetFilter(ctx, a.ID, fs); err != nil {
		t.Fatal(err)
	}

	gotB, _ := sessions.Get(b.ID)
	if gotB.Snapshot.RowCount != 3 {
		t.Errorf("Session b changed: RowCount = %d", gotB.Snapshot.RowCount)
	}
	if sessions.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sessions.Len())
	}
}

func TestSetFilterKeepsStateOnError(t *testing.T) {
	e, _ := newEngine(t, Options{})
	sessions := NewSessions(e)
	ctx := context.Background()

	sess, _ := sessions.Create(ctx)
	bad := sess.Filter
	bad.Start, bad.End = bad.End.AddDate(0, 0, 1), bad.Start

	if _, err := sessions.SetFilter(ctx, sess.ID, bad); err == nil {
		t.Fatal("Expected error for inverted range")
	}
	got, _ := sessions.Get(sess.ID)
	if !got.Filter.Equal(sess.Filter) {
		t.Error("Filter changed despite error")
	}

	if _, err := sessions.SetFilter(ctx, "missing", sess.Filter); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetFilterRevision(t *testing.T) {
	e, _ := newEngine(t, Options{})
	sessions := NewSessions(e)
	ctx := context.Background()

	sess, _ := sessions.Create(ctx)
	if sess.Revision != 0 {
		t.Fatalf("Revision = %d, want 0", sess.Revision)
	}

	// Same selection in a different order
	same := sess.Filter
	same.States = append([]string{}, sess.Filter.States...)
	slices.Reverse(same.States)
	got, err := sessions.SetFilter(ctx, sess.ID, same)
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != 0 {
		t.Errorf("Revision = %d after an equivalent filter, want 0", got.Revision)
	}

	narrowed := sess.Filter
	narrowed.States = []string{"New York"}
	got, err = sessions.SetFilter(ctx, sess.ID, narrowed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != 1 {
		t.Errorf("Revision = %d after narrowing, want 1", got.Revision)
	}
}
