package datastore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskDataStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dds, err := NewDiskDataStore(root)
	if err != nil {
		t.Fatal(err)
	}

	if err = dds.WriteFile(ctx, "dumps/regions.parquet", strings.NewReader("PAR1")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(root, "dumps", "regions.parquet"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "PAR1" {
		t.Fatal("bad content", string(b))
	}

	// paths never escape the root
	if err = dds.WriteFile(ctx, "../escape.bin", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, err = os.Stat(filepath.Join(root, "escape.bin")); err != nil {
		t.Fatal("expected file inside root", err)
	}

	f, err := dds.OpenParquetFile(ctx, "dumps/regions.parquet")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "PAR1" {
		t.Fatal("bad read", string(got))
	}

	if _, err = dds.OpenParquetFile(ctx, "missing.parquet"); err == nil {
		t.Fatal("opened a missing file")
	}
}
