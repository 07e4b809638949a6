package sandbox

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeNameStripsDisallowedCharacters(t *testing.T) {
	got := sanitizeName("call:123/abc def")
	for _, r := range got {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.-", r) {
			t.Fatalf("sanitized name contains disallowed rune %q: %q", r, got)
		}
	}
}

func TestClampTimeoutDefaultsAndCaps(t *testing.T) {
	if got := clampTimeout(0); got != defaultTimeout {
		t.Fatalf("expected default timeout, got %s", got)
	}
	if got := clampTimeout(10_000); got != maxTimeout {
		t.Fatalf("expected timeout clamped to max, got %s", got)
	}
	if got := clampTimeout(45); got != 45*time.Second {
		t.Fatalf("expected explicit timeout honored, got %s", got)
	}
}

func TestTruncateRunesAppendsMarkerOnlyWhenOverLimit(t *testing.T) {
	short := "hello"
	if got := truncateRunes(short); got != short {
		t.Fatalf("short string should be untouched, got %q", got)
	}

	long := strings.Repeat("x", maxOutputRunes+10)
	got := truncateRunes(long)
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-20:])
	}
	if len([]rune(got)) != maxOutputRunes+len("\n...[truncated]") {
		t.Fatalf("unexpected truncated length: %d", len([]rune(got)))
	}
}
