package index

import (
	"fmt"
	"time"

	"github.com/ashgrove/mediavault/internal/pathutil"
)

// batchOrder matches spec §4.8's enrichment batch ordering: newest files
// first, with a deterministic tie-break so a stage's progress through a
// batch is reproducible across restarts.
const batchOrder = `ORDER BY (created IS NULL) ASC, created DESC, folder DESC, file_name DESC`

// PendingInfo returns up to limit rows still lacking infoProcessedAt,
// offset rows into that ordering (spec §4.8 stage 1).
func (s *Store) PendingInfo(limit, offset int) ([]*FileRecord, error) {
	return s.pendingBatch("info_processed_at IS NULL", limit, offset)
}

// PendingExif returns up to limit rows still lacking exifProcessedAt
// (spec §4.8 stage 2).
func (s *Store) PendingExif(limit, offset int) ([]*FileRecord, error) {
	return s.pendingBatch("exif_processed_at IS NULL", limit, offset)
}

// PendingHLS returns up to limit video rows whose EXIF stage has completed
// (spec §4.8 stage 3). Unlike the other two stages, completeness here is
// judged by cache existence, not a watermark column, so the caller must
// keep advancing offset across a full sweep rather than relying on rows
// disappearing from the predicate once handled.
func (s *Store) PendingHLS(limit, offset int) ([]*FileRecord, error) {
	return s.pendingBatch("exif_processed_at IS NOT NULL AND mime_type LIKE 'video/%'", limit, offset)
}

// PendingInfoCount, PendingExifCount, and PendingHLSCount report the
// size of each stage's remaining work, for the status reporter's
// "pending = {info, exif, thumbnails}" field (spec §4.10).
func (s *Store) PendingInfoCount() (int, error) {
	return s.pendingCount("info_processed_at IS NULL")
}

func (s *Store) PendingExifCount() (int, error) {
	return s.pendingCount("exif_processed_at IS NULL")
}

func (s *Store) PendingHLSCount() (int, error) {
	return s.pendingCount("exif_processed_at IS NOT NULL AND mime_type LIKE 'video/%'")
}

func (s *Store) pendingCount(predicate string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM files WHERE %s`, predicate)
	err := s.db.QueryRow(query).Scan(&n)
	return n, err
}

// RowCount returns the total number of indexed rows, the status
// reporter's "databaseSize" (spec §4.10).
func (s *Store) RowCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

func (s *Store) pendingBatch(predicate string, limit, offset int) ([]*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s %s LIMIT ? OFFSET ?`, selectColumns, predicate, batchOrder)

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkInfoProcessed stores file info (size, created, modified) and sets
// infoProcessedAt, or sets the watermark alone when the stat failed.
func (s *Store) MarkInfoProcessed(relPath string, partial *FileRecord) error {
	now := time.Now().UTC()
	if partial == nil {
		partial = &FileRecord{}
	}
	partial.InfoProcessedAt = &now
	return s.AddOrUpdateFileData(relPath, partial)
}

// MarkExifProcessed merges the extracted attribute set (if any) and sets
// exifProcessedAt. Passing a nil partial still sets the watermark so a
// permanently-failing or non-media row is not revisited (spec §4.8 stage 2).
func (s *Store) MarkExifProcessed(relPath string, partial *FileRecord) error {
	now := time.Now().UTC()
	if partial == nil {
		partial = &FileRecord{}
	}
	partial.ExifProcessedAt = &now
	return s.AddOrUpdateFileData(relPath, partial)
}

// ClearWatermarks resets infoProcessedAt and exifProcessedAt on relPath so
// the next enrichment sweep revisits it, used by the file watcher's
// `change` event (spec §4.8 "queue the path for re-enrichment").
func (s *Store) ClearWatermarks(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, name := pathutil.Split(relPath)
	return withRetry(func() error {
		_, err := s.db.Exec(`UPDATE files SET info_processed_at = NULL, exif_processed_at = NULL WHERE folder = ? AND file_name = ?`, folder, name)
		return err
	})
}
