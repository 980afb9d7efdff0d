package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/logger"
	"github.com/ashgrove/mediavault/internal/pathutil"
	_ "modernc.org/sqlite"
)

// schemaVersion is the version Open records in the schema_version table
// when a database has no version row. Open applies no migration steps.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS files (
	folder TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT,
	size_in_bytes INTEGER,
	created TEXT,
	modified TEXT,
	date_taken TEXT,
	dimension_width INTEGER,
	dimension_height INTEGER,
	location_latitude REAL,
	location_longitude REAL,
	camera_make TEXT,
	camera_model TEXT,
	exposure TEXT,
	aperture REAL,
	iso INTEGER,
	focal_length REAL,
	lens TEXT,
	video_duration_ms INTEGER,
	video_framerate REAL,
	video_codec TEXT,
	audio_codec TEXT,
	rating INTEGER,
	tags TEXT,
	orientation INTEGER,
	ai_description TEXT,
	ai_tags TEXT,
	faces TEXT,
	info_processed_at TEXT,
	exif_processed_at TEXT,
	ai_processed_at TEXT,
	face_processed_at TEXT,
	PRIMARY KEY (folder, file_name)
);

CREATE INDEX IF NOT EXISTS idx_files_date_taken ON files(date_taken DESC);
CREATE INDEX IF NOT EXISTS idx_files_mime_type ON files(mime_type);
CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder);
CREATE INDEX IF NOT EXISTS idx_files_info_processed ON files(info_processed_at);
CREATE INDEX IF NOT EXISTS idx_files_exif_processed ON files(exif_processed_at);
CREATE INDEX IF NOT EXISTS idx_files_ai_processed ON files(ai_processed_at);
CREATE INDEX IF NOT EXISTS idx_files_face_processed ON files(face_processed_at);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// Store is a durable, keyed, sqlite-backed catalog of FileRecords. It uses
// the same pure-Go driver, WAL journal mode, and busy-timeout DSN as the
// teacher's SQLiteStore, since the concurrency shape (one writer goroutine
// set, many concurrent readers) is identical.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open creates or opens the index database at dbPath, ensures the schema
// exists, and verifies/sets the root pin. If root differs from the
// previously pinned root, every row is cleared and the pin is updated
// (spec §3.2 "Root change").
func Open(dbPath, root string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.reconcileRoot(root); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// reconcileRoot checks the pinned root against the configured one. On
// mismatch it clears the index and repins (spec §3.2).
func (s *Store) reconcileRoot(root string) error {
	pinned, err := s.getMeta("root_path")
	if err != nil {
		return err
	}

	if pinned == root {
		return nil
	}

	if pinned != "" {
		logger.Info("media root changed, clearing index", "old_root", pinned, "new_root", root)
		if _, err := s.db.Exec("DELETE FROM files"); err != nil {
			return fmt.Errorf("clear index on root change: %w", err)
		}
	}

	return s.setMeta("root_path", root)
}

func (s *Store) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec("INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk database file path.
func (s *Store) Path() string { return s.path }

// withRetry calls fn up to 5 times in all, with linear backoff (10ms *
// attempt) after each transient "database is locked"/"busy" error, per
// spec §4.7.
func withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isContention(err) {
			return err
		}
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}
	return fmt.Errorf("%w: %v", apperr.ErrContentionRetry, err)
}

func isContention(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// InsertPaths performs a transactional bulk insert of bare rows (folder,
// fileName, mimeType inferred from fileName), using INSERT OR IGNORE
// semantics so re-running discovery over an unchanged tree is a no-op
// (spec §4.7, §4.8, and the idempotence property of spec §8).
func (s *Store) InsertPaths(relativePaths []string) (inserted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = withRetry(func() error {
		tx, txErr := s.db.Begin()
		if txErr != nil {
			return txErr
		}
		defer func() { _ = tx.Rollback() }()

		stmt, prepErr := tx.Prepare(`INSERT OR IGNORE INTO files (folder, file_name, mime_type) VALUES (?, ?, ?)`)
		if prepErr != nil {
			return prepErr
		}
		defer stmt.Close()

		inserted = 0
		for _, rel := range relativePaths {
			folder, name := pathutil.Split(rel)
			mime := pathutil.MimeForFilename(name)
			var mimeArg interface{}
			if mime != "" {
				mimeArg = mime
			}
			res, execErr := stmt.Exec(folder, name, mimeArg)
			if execErr != nil {
				return execErr
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}

		return tx.Commit()
	})

	return inserted, err
}

// MoveFile atomically changes a record's identity from old to new,
// preserving attributes and watermarks (spec §3.2 "Move").
func (s *Store) MoveFile(oldRel, newRel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldFolder, oldName := pathutil.Split(oldRel)
	newFolder, newName := pathutil.Split(newRel)

	return withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.Exec(`UPDATE files SET folder = ?, file_name = ? WHERE folder = ? AND file_name = ?`,
			newFolder, newName, oldFolder, oldName)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.ErrNotFound
		}

		return tx.Commit()
	})
}

// DeleteFile removes a record by relative path.
func (s *Store) DeleteFile(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, name := pathutil.Split(relPath)
	return withRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM files WHERE folder = ? AND file_name = ?`, folder, name)
		return err
	})
}

// jsonTags marshals a []string to a nullable JSON text column.
func jsonTags(tags []string) interface{} {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func parseTags(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(s.String), &tags)
	return tags
}

func jsonFaces(faces []FaceTag) interface{} {
	if len(faces) == 0 {
		return nil
	}
	b, _ := json.Marshal(faces)
	return string(b)
}

func parseFaces(s sql.NullString) []FaceTag {
	if !s.Valid || s.String == "" {
		return nil
	}
	var faces []FaceTag
	_ = json.Unmarshal([]byte(s.String), &faces)
	return faces
}
