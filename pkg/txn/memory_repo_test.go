package txn

import (
	"context"
	"sync"
	"testing"
)

func TestTransitionCASRejectsStaleExpected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tx := NewPending(1, 100, 200)
	if err := repo.Create(ctx, tx); err != nil {
		t.Fatal(err)
	}

	ok, err := repo.Transition(ctx, 1, StatusChatStarted, StatusWaitingPayment)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected CAS to reject because current status is pending, not chat_started")
	}

	ok, err = repo.Transition(ctx, 1, StatusPending, StatusWaitingPayment)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected CAS to apply with correct expected status")
	}
}

func TestTransitionIllegalEdgeRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tx := NewPending(2, 100, 200)
	repo.Create(ctx, tx)

	_, err := repo.Transition(ctx, 2, StatusPending, StatusCompleted)
	if err != ErrIllegalTransition {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

// Once terminal, concurrent transition attempts never succeed.
func TestConcurrentTransitionsNeverCrossTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tx := NewPending(3, 100, 200)
	repo.Create(ctx, tx)
	repo.Transition(ctx, 3, StatusPending, StatusWaitingPayment)
	repo.Transition(ctx, 3, StatusWaitingPayment, StatusPaymentReceived)
	repo.Transition(ctx, 3, StatusPaymentReceived, StatusCheckReceived)
	ok, _ := repo.Transition(ctx, 3, StatusCheckReceived, StatusCompleted)
	if !ok {
		t.Fatal("expected final transition to completed to apply")
	}

	var wg sync.WaitGroup
	successes := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := repo.Transition(ctx, 3, StatusCompleted, StatusFailed)
			successes <- ok
		}()
	}
	wg.Wait()
	close(successes)
	for ok := range successes {
		if ok {
			t.Fatal("a transition out of a terminal state must never succeed")
		}
	}
}

// LinkOrder only attaches to one Transaction even under concurrent
// callers racing the same ad.
func TestLinkOrderAtMostOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.Create(ctx, NewPending(4, 100, 200))

	var wg sync.WaitGroup
	results := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := repo.LinkOrder(ctx, 200, "O1", StatusChatStarted)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	linked := 0
	for ok := range results {
		if ok {
			linked++
		}
	}
	if linked != 1 {
		t.Fatalf("expected exactly one LinkOrder to succeed, got %d", linked)
	}
}
