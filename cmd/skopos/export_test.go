package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestExportImportRoundtrip(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "data")
	archive := filepath.Join(tmp, "export.tar.zst")
	dst := filepath.Join(tmp, "restored")

	writeFile(t, filepath.Join(src, "skopos.db"), "not really a database")
	writeFile(t, filepath.Join(src, "nats", "jetstream", "state"), "stream state")

	if err := runExport([]string{"-f", archive, "-data", src}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if info, err := os.Stat(archive); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty archive, err=%v", err)
	}

	if err := runImport([]string{"-f", archive, "-data", dst}); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "skopos.db"))
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(got) != "not really a database" {
		t.Errorf("restored content mismatch: %q", got)
	}
	got, err = os.ReadFile(filepath.Join(dst, "nats", "jetstream", "state"))
	if err != nil {
		t.Fatalf("read nested restored file: %v", err)
	}
	if string(got) != "stream state" {
		t.Errorf("nested content mismatch: %q", got)
	}
}

func TestImportRefusesExistingFiles(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "data")
	archive := filepath.Join(tmp, "export.tar.zst")

	writeFile(t, filepath.Join(src, "skopos.db"), "original")

	if err := runExport([]string{"-f", archive, "-data", src}); err != nil {
		t.Fatalf("export: %v", err)
	}

	// Importing over the same dir must fail without -overwrite
	if err := runImport([]string{"-f", archive, "-data", src}); err == nil {
		t.Fatal("expected error importing over existing files")
	}

	// With -overwrite it succeeds
	if err := runImport([]string{"-f", archive, "-data", src, "-overwrite"}); err != nil {
		t.Fatalf("import with overwrite: %v", err)
	}
}

func TestExportMissingFlags(t *testing.T) {
	if err := runExport(nil); err == nil {
		t.Error("expected error for missing -f")
	}
	if err := runImport(nil); err == nil {
		t.Error("expected error for missing -f")
	}
	if err := runExport([]string{"-f", "/tmp/out.tar.zst", "-data", filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing data dir")
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, c := range cases {
		if got := formatSize(c.in); got != c.want {
			t.Errorf("formatSize(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
