package model

import "testing"

func TestItemVarianceDerivation(t *testing.T) {
	item := CycleCountItem{ExpectedQty: 100}

	if _, ok := item.Variance(); ok {
		t.Fatal("uncounted item must report no variance")
	}

	counted := 95
	item.CountedQty = &counted
	if variance, ok := item.Variance(); !ok || variance != -5 {
		t.Fatalf("expected variance -5, got %d (ok=%v)", variance, ok)
	}

	// Variance follows every edit because it is derived, never stored.
	counted = 104
	if variance, _ := item.Variance(); variance != 4 {
		t.Fatalf("expected variance 4 after edit, got %d", variance)
	}
}

func TestCountTerminal(t *testing.T) {
	for status, want := range map[CountStatus]bool{
		StatusPending:         false,
		StatusInProgress:      false,
		StatusPendingApproval: false,
		StatusCompleted:       true,
		StatusCancelled:       true,
	} {
		count := CycleCount{Status: status}
		if count.Terminal() != want {
			t.Errorf("Terminal() for %s = %v, want %v", status, count.Terminal(), want)
		}
	}
}
