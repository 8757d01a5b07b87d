package guard

import (
	"strings"
	"testing"
)

func TestCacheKey_Stable(t *testing.T) {
	k1 := CacheKey(DirectionInput, "hello world", "v1")
	k2 := CacheKey(DirectionInput, "hello world", "v1")

	if k1 != k2 {
		t.Errorf("Expected identical keys for identical input, got %q and %q", k1, k2)
	}
}

func TestCacheKey_WhitespaceInsensitive(t *testing.T) {
	k1 := CacheKey(DirectionInput, "hello   world", "v1")
	k2 := CacheKey(DirectionInput, "  hello world\n", "v1")

	if k1 != k2 {
		t.Error("Expected whitespace-normalized inputs to share a key")
	}
}

func TestCacheKey_DirectionSeparation(t *testing.T) {
	in := CacheKey(DirectionInput, "same text", "v1")
	out := CacheKey(DirectionOutput, "same text", "v1")

	if in == out {
		t.Error("Expected input and output scans to derive different keys")
	}
}

func TestCacheKey_ConfigVersionInvalidates(t *testing.T) {
	k1 := CacheKey(DirectionInput, "same text", "v1")
	k2 := CacheKey(DirectionInput, "same text", "v2")

	if k1 == k2 {
		t.Error("Expected config version bump to change the key")
	}
}

func TestCacheKey_Prefix(t *testing.T) {
	key := CacheKey(DirectionOutput, "text", "v1")
	if !strings.HasPrefix(key, "guard:output:") {
		t.Errorf("Expected namespaced key, got %q", key)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"leading and trailing", "  hello world  ", "hello world"},
		{"interior runs", "hello \t\n  world", "hello world"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVerdict_FailedScanners(t *testing.T) {
	v := &Verdict{
		Allowed: false,
		Scanners: map[string]ScannerResult{
			"toxicity":    {Passed: false, Reason: "toxic content detected", Score: 0.97},
			"pii":         {Passed: true, Score: 0.1},
			"prompt_injection": {Passed: false, Reason: "injection pattern", Score: 0.88},
		},
	}

	failed := v.FailedScanners()
	if len(failed) != 2 {
		t.Fatalf("Expected 2 failed scanners, got %d", len(failed))
	}

	// Stable ordering by name
	if failed[0].Scanner != "prompt_injection" || failed[1].Scanner != "toxicity" {
		t.Errorf("Expected sorted order, got %v", failed)
	}

	if failed[1].Reason != "toxic content detected" {
		t.Errorf("Unexpected reason: %q", failed[1].Reason)
	}
}

func TestVerdict_FailedScanners_NilSafe(t *testing.T) {
	var v *Verdict
	if got := v.FailedScanners(); got != nil {
		t.Errorf("Expected nil for nil verdict, got %v", got)
	}

	if got := Allow().FailedScanners(); got != nil {
		t.Errorf("Expected nil for allow verdict, got %v", got)
	}
}
