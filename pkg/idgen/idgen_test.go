package idgen

import (
	"testing"
)

func TestGenerateMonotonicAndUnique(t *testing.T) {
	Init(7)
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func TestTokenDeterministicPerTxnAndStep(t *testing.T) {
	tok := Token(42, "release")
	if again := Token(42, "release"); again != tok {
		t.Fatalf("expected the same (txn, step) to mint the same token, got %s and %s", tok, again)
	}
	if other := Token(42, "chat-step-3"); other == tok {
		t.Fatalf("expected a different step to mint a different token, got %s twice", tok)
	}
	if other := Token(43, "release"); other == tok {
		t.Fatalf("expected a different txn id to mint a different token, got %s twice", tok)
	}
}

func TestPlaceholderAdID(t *testing.T) {
	if got := PlaceholderAdID("O123"); got != "temp_O123" {
		t.Fatalf("unexpected placeholder id: %s", got)
	}
}
