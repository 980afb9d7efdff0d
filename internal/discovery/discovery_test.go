package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashgrove/mediavault/internal/cache"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/metadata"
	"github.com/ashgrove/mediavault/internal/scheduler"
)

func newTestDriver(t *testing.T, root string) *Driver {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := index.Open(dbPath, root)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	cacheRoot := t.TempDir()
	derivative, hls, err := cache.Init(context.Background(), cacheRoot)
	if err != nil {
		t.Fatalf("cache.Init: %v", err)
	}

	video := encoder.NewVideoTool("ffprobe", "ffmpeg")
	extractor := metadata.NewExtractor(video)
	sched := scheduler.New(2)

	return New(root, idx, extractor, video, derivative, hls, sched)
}

func TestWalkInsertsBareRows(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "a.jpg"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.mp4"), "b")
	writeFile(t, filepath.Join(root, ".hidden"), "h")
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, ".git", "config"), "g")

	d := newTestDriver(t, root)

	if err := d.walk(context.Background()); err != nil {
		t.Fatalf("walk: %v", err)
	}

	total, err := d.idx.Count(nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 2 {
		t.Fatalf("indexed rows = %d, want 2 (hidden file/dir must be skipped)", total)
	}

	rec, err := d.idx.Get("a.jpg")
	if err != nil {
		t.Fatalf("Get a.jpg: %v", err)
	}
	if rec.MimeType == nil || *rec.MimeType != "image/jpeg" {
		t.Errorf("a.jpg MimeType = %v, want image/jpeg", rec.MimeType)
	}
}

func TestInfoStageFillsSizeAndModified(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "hello world")

	d := newTestDriver(t, root)
	if err := d.walk(context.Background()); err != nil {
		t.Fatalf("walk: %v", err)
	}

	n, err := d.infoStage(context.Background())
	if err != nil {
		t.Fatalf("infoStage: %v", err)
	}
	if n != 1 {
		t.Fatalf("infoStage processed %d, want 1", n)
	}

	rec, err := d.idx.Get("a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.InfoProcessedAt == nil {
		t.Fatal("InfoProcessedAt not set")
	}
	if rec.SizeInBytes == nil || *rec.SizeInBytes != int64(len("hello world")) {
		t.Errorf("SizeInBytes = %v, want %d", rec.SizeInBytes, len("hello world"))
	}
}

func TestExifStageSetsWatermarkForNonMedia(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.txt"), "plain text")

	d := newTestDriver(t, root)
	if err := d.walk(context.Background()); err != nil {
		t.Fatalf("walk: %v", err)
	}

	n, err := d.exifStage(context.Background())
	if err != nil {
		t.Fatalf("exifStage: %v", err)
	}
	if n != 1 {
		t.Fatalf("exifStage processed %d, want 1", n)
	}

	rec, err := d.idx.Get("notes.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ExifProcessedAt == nil {
		t.Fatal("ExifProcessedAt not set for non-media row")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
