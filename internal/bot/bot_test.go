package bot

import (
	"sync"
	"testing"
)

func TestNewBotWithoutTokenDisablesChat(t *testing.T) {
	b, err := NewBot("", nil, nil)
	if err != nil {
		t.Fatalf("empty token must not fail startup: %v", err)
	}
	if b != nil {
		t.Fatalf("expected a disabled chat surface")
	}
	if err := b.Start(); err != nil {
		t.Fatalf("start on a disabled bot: %v", err)
	}
	b.Stop()
}

func TestPendingDraftClaimIsExclusive(t *testing.T) {
	b := &Bot{pending: make(map[string]*pendingDraft)}
	b.storePending("preview-1", &pendingDraft{RequesterID: "u1"})

	// Concurrent confirm presses race on the claim; exactly one may win.
	const presses = 8
	claims := make(chan *pendingDraft, presses)
	var wg sync.WaitGroup
	for i := 0; i < presses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claims <- b.takePending("preview-1")
		}()
	}
	wg.Wait()
	close(claims)

	won := 0
	for draft := range claims {
		if draft != nil {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("exactly one press may claim the draft, got %d", won)
	}
}

func TestPendingDraftCanBeRestored(t *testing.T) {
	b := &Bot{pending: make(map[string]*pendingDraft)}
	draft := &pendingDraft{RequesterID: "u1"}
	b.storePending("preview-1", draft)

	// A failed create puts the draft back so the user can retry.
	claimed := b.takePending("preview-1")
	if claimed == nil {
		t.Fatalf("claim failed")
	}
	b.storePending("preview-1", claimed)

	if again := b.takePending("preview-1"); again != draft {
		t.Fatalf("restored draft must be claimable again")
	}
}
