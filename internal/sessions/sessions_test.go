package sessions_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dbgenie/dbgenie/internal/sessions"
	"github.com/dbgenie/dbgenie/pkg/models"
)

func TestAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()

	session, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.AppendTurns(ctx, session.ID, models.NewTextTurn("user", "earlier question")); err != nil {
		t.Fatalf("AppendTurns() error = %v", err)
	}

	// Appending a (user, assistant) pair then reading back returns exactly
	// those two turns in order after what was already there.
	pair := []models.Turn{
		models.NewTextTurn("user", "how many employees?"),
		models.NewTextTurn("assistant", "There are 42 employees."),
	}
	if err := store.AppendTurns(ctx, session.ID, pair...); err != nil {
		t.Fatalf("AppendTurns() error = %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(got.Turns))
	}
	if got.Turns[1].Text() != "how many employees?" || got.Turns[1].Role != "user" {
		t.Errorf("turn 1 = %+v", got.Turns[1])
	}
	if got.Turns[2].Text() != "There are 42 employees." || got.Turns[2].Role != "assistant" {
		t.Errorf("turn 2 = %+v", got.Turns[2])
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	session, _ := store.Create(ctx)
	store.AppendTurns(ctx, session.ID, models.NewTextTurn("user", "hello"))

	snapshot, _ := store.Get(ctx, session.ID)
	snapshot.Turns[0] = models.NewTextTurn("user", "tampered")

	fresh, _ := store.Get(ctx, session.ID)
	if fresh.Turns[0].Text() != "hello" {
		t.Error("mutating a Get() snapshot leaked into the store")
	}
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()

	if err := store.Ensure(ctx, "caller-chosen-id"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := store.AppendTurns(ctx, "caller-chosen-id", models.NewTextTurn("user", "hi")); err != nil {
		t.Fatalf("AppendTurns() after Ensure error = %v", err)
	}
	// Ensure on an existing session keeps its history.
	if err := store.Ensure(ctx, "caller-chosen-id"); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	got, _ := store.Get(ctx, "caller-chosen-id")
	if len(got.Turns) != 1 {
		t.Errorf("Ensure() reset history: %d turns, want 1", len(got.Turns))
	}
}

func TestClearAndDelete(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	session, _ := store.Create(ctx)
	store.AppendTurns(ctx, session.ID, models.NewTextTurn("user", "hi"))

	if err := store.Clear(ctx, session.ID); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() after Clear error = %v", err)
	}
	if len(got.Turns) != 0 {
		t.Errorf("Clear() left %d turns", len(got.Turns))
	}

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, session.ID); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	if err := store.AppendTurns(ctx, "nope", models.NewTextTurn("user", "x")); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("AppendTurns error = %v, want ErrNotFound", err)
	}
	if err := store.Clear(ctx, "nope"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("Clear error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	session, _ := store.Create(ctx)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.AppendTurns(ctx, session.ID,
				models.NewTextTurn("user", fmt.Sprintf("q%d", i)),
				models.NewTextTurn("assistant", fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	got, _ := store.Get(ctx, session.ID)
	if len(got.Turns) != writers*2 {
		t.Fatalf("got %d turns, want %d", len(got.Turns), writers*2)
	}
	// Every pair must be adjacent: user qN immediately followed by assistant aN.
	for i := 0; i < len(got.Turns); i += 2 {
		u, a := got.Turns[i], got.Turns[i+1]
		if u.Role != "user" || a.Role != "assistant" {
			t.Fatalf("turns %d/%d roles = %s/%s", i, i+1, u.Role, a.Role)
		}
		if "q"+a.Text()[1:] != u.Text() {
			t.Fatalf("interleaved pair at %d: %q then %q", i, u.Text(), a.Text())
		}
	}
}
