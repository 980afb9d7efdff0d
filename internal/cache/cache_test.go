package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestHashStable(t *testing.T) {
	a := Hash("/media/photo.jpg", 12345)
	b := Hash("/media/photo.jpg", 12345)
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	c := Hash("/media/photo.jpg", 12346)
	if a == c {
		t.Fatalf("hash did not change with modified time")
	}
}

func TestInitCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "cache")

	d, h, err := Init(context.Background(), root)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(d.Root()); err != nil {
		t.Fatalf("derivative root missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "hls-abr")); err != nil {
		t.Fatalf("hls root missing: %v", err)
	}
	_ = h
}

func TestWriterRenameOnSuccess(t *testing.T) {
	dir := t.TempDir()
	d, _, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	w, err := d.Create("abc123", "500", "jpg")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("fake jpeg bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	finalPath := d.Path("abc123", "500", "jpg")
	if _, err := os.Stat(finalPath); err == nil {
		t.Fatalf("final path exists before commit")
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := os.Stat(finalPath); err != nil {
		t.Fatalf("final path missing after commit: %v", err)
	}
	if !d.Exists("abc123", "500", "jpg") {
		t.Fatalf("Exists returned false after commit")
	}
}

func TestWriterAbortLeavesNoFinalFile(t *testing.T) {
	dir := t.TempDir()
	d, _, err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	w, err := d.Create("xyz", "320", "jpg")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, _ = w.Write([]byte("partial"))
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if d.Exists("xyz", "320", "jpg") {
		t.Fatalf("final path exists after abort")
	}
	if _, err := os.Stat(d.Path("xyz", "320", "jpg") + ".part"); err == nil {
		t.Fatalf(".part file should be removed after abort")
	}
}
