package index

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashgrove/mediavault/internal/apperr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path, "/media")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddOrUpdateFileDataCreatesRow(t *testing.T) {
	s := openTestStore(t)

	if err := s.AddOrUpdateFileData("a.jpg", nil); err != nil {
		t.Fatalf("AddOrUpdateFileData: %v", err)
	}

	rec, err := s.Get("a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Folder != "/" || rec.FileName != "a.jpg" {
		t.Errorf("unexpected identity: folder=%q fileName=%q", rec.Folder, rec.FileName)
	}
	if rec.MimeType == nil || *rec.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %v, want inferred image/jpeg", rec.MimeType)
	}
}

func TestAddOrUpdateFileDataMergesPartial(t *testing.T) {
	s := openTestStore(t)

	if err := s.AddOrUpdateFileData("a.jpg", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	size := int64(1024)
	now := time.Now().UTC().Round(time.Millisecond)
	if err := s.AddOrUpdateFileData("a.jpg", &FileRecord{SizeInBytes: &size, InfoProcessedAt: &now}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	rec, err := s.Get("a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.SizeInBytes == nil || *rec.SizeInBytes != size {
		t.Errorf("SizeInBytes = %v, want %d", rec.SizeInBytes, size)
	}
	if rec.InfoProcessedAt == nil {
		t.Fatal("InfoProcessedAt watermark not set")
	}
	if rec.MimeType == nil || *rec.MimeType != "image/jpeg" {
		t.Errorf("existing MimeType should survive merge, got %v", rec.MimeType)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("missing.jpg"); err == nil {
		t.Fatal("expected error for missing row")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertPathsIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	n, err := s.InsertPaths([]string{"a.jpg", "sub/b.mp4"})
	if err != nil {
		t.Fatalf("InsertPaths: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	n, err = s.InsertPaths([]string{"a.jpg", "sub/b.mp4"})
	if err != nil {
		t.Fatalf("InsertPaths second run: %v", err)
	}
	if n != 0 {
		t.Fatalf("re-running InsertPaths over an unchanged set inserted %d rows, want 0", n)
	}

	total, err := s.RowCount()
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if total != 2 {
		t.Fatalf("RowCount = %d, want 2", total)
	}
}

func TestMoveFilePreservesWatermarks(t *testing.T) {
	s := openTestStore(t)

	if err := s.AddOrUpdateFileData("a.jpg", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now := time.Now().UTC().Round(time.Millisecond)
	if err := s.AddOrUpdateFileData("a.jpg", &FileRecord{ExifProcessedAt: &now}); err != nil {
		t.Fatalf("mark exif: %v", err)
	}

	if err := s.MoveFile("a.jpg", "sub/b.jpg"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}

	if _, err := s.Get("a.jpg"); err == nil {
		t.Fatal("old path should no longer resolve")
	}

	rec, err := s.Get("sub/b.jpg")
	if err != nil {
		t.Fatalf("Get new path: %v", err)
	}
	if rec.ExifProcessedAt == nil {
		t.Error("ExifProcessedAt watermark should survive a move")
	}
}

func TestDeleteFileRemovesRow(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddOrUpdateFileData("a.jpg", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.DeleteFile("a.jpg"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := s.Get("a.jpg"); err == nil {
		t.Fatal("expected row to be gone after delete")
	}
}

func TestReconcileRootClearsIndexOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path, "/media/v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.AddOrUpdateFileData("a.jpg", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.Close()

	s2, err := Open(path, "/media/v2")
	if err != nil {
		t.Fatalf("re-open with new root: %v", err)
	}
	defer s2.Close()

	total, err := s2.RowCount()
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if total != 0 {
		t.Fatalf("root change should clear the index, found %d rows", total)
	}
}
