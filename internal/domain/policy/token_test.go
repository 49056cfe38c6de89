package policy

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestTokenClock_StrictlyIncreasing(t *testing.T) {
	c := NewTokenClock()

	prev := c.Next()
	for i := 0; i < 1000; i++ {
		next := c.Next()
		if next <= prev {
			t.Fatalf("token %q not greater than previous %q", next, prev)
		}
		prev = next
	}
}

func TestTokenClock_FrozenClockStillAdvances(t *testing.T) {
	// A clock that never moves forces the 1ns bump path on every call.
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTokenClockAt(func() time.Time { return frozen })

	a := c.Next()
	b := c.Next()
	if b <= a {
		t.Errorf("frozen clock issued non-increasing tokens: %q then %q", a, b)
	}
}

func TestTokenClock_LexicographicMatchesChronological(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 999999998, time.UTC)
	step := 0
	c := newTokenClockAt(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Nanosecond)
	})

	var tokens []string
	for i := 0; i < 10; i++ {
		tokens = append(tokens, c.Next())
	}
	if !sort.StringsAreSorted(tokens) {
		t.Errorf("tokens not lexicographically sorted: %v", tokens)
	}
}

func TestTokenClock_ConcurrentUniqueness(t *testing.T) {
	c := NewTokenClock()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tok := c.Next()
				mu.Lock()
				if seen[tok] {
					t.Errorf("duplicate token issued: %q", tok)
				}
				seen[tok] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("package p\nallow { true }")
	b := Fingerprint("package p\nallow { false }")

	if len(a) != 16 {
		t.Errorf("Fingerprint length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("distinct rules produced identical fingerprints")
	}
	if a != Fingerprint("package p\nallow { true }") {
		t.Error("Fingerprint not deterministic")
	}
}

func TestLanguageValid(t *testing.T) {
	tests := []struct {
		lang Language
		want bool
	}{
		{LanguageRego, true},
		{LanguageCedar, true},
		{LanguageAlfa, true},
		{Language(""), false},
		{Language("xacml"), false},
		{Language("REGO"), false},
	}
	for _, tt := range tests {
		if got := tt.lang.Valid(); got != tt.want {
			t.Errorf("Language(%q).Valid() = %v, want %v", tt.lang, got, tt.want)
		}
	}
}
