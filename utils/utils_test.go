package utils

import (
	"os"
	"testing"
)

func TestSplitList(t *testing.T) {
	got := SplitList(" a.yaml, ,s3://bucket/b.yaml,")
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(got), got)
	}
	if got[0] != "a.yaml" || got[1] != "s3://bucket/b.yaml" {
		t.Fatalf("unexpected items %+v", got)
	}
	if SplitList("") != nil {
		t.Fatal("expected nil for empty list")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	os.Setenv("DIRECTDICT_TEST_ENV", "")
	if GetEnvOrDefault("DIRECTDICT_TEST_ENV", "fallback") != "fallback" {
		t.Fatal("expected fallback")
	}
	os.Setenv("DIRECTDICT_TEST_ENV", "70000")
	if GetEnvOrDefaultInt("DIRECTDICT_TEST_ENV", 1) != 70000 {
		t.Fatal("expected 70000")
	}
}

func TestPermError(t *testing.T) {
	var err error = PermError("nope")
	p, ok := err.(permanent)
	if !ok || !p.IsPermanent() {
		t.Fatal("PermError should be permanent")
	}
}
