package index

import (
	"database/sql"
	"fmt"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/pathutil"
)

// Get returns the record at relativePath, or (nil, apperr.ErrNotFound).
func (s *Store) Get(relativePath string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folder, name := pathutil.Split(relativePath)
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM files WHERE folder = ? AND file_name = ?`, folder, name)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AddOrUpdateFileData merges partial into the existing row at
// relativePath, creating one if none exists (inferring MIME from the
// filename for new rows), per spec §4.7. A nil partial only ensures the
// row exists.
func (s *Store) AddOrUpdateFileData(relativePath string, partial *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partial == nil {
		partial = &FileRecord{}
	}

	folder, name := pathutil.Split(relativePath)

	return withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRow(`SELECT `+selectColumns+` FROM files WHERE folder = ? AND file_name = ?`, folder, name)
		existing, err := scanRecord(row)
		if err == sql.ErrNoRows {
			mime := pathutil.MimeForFilename(name)
			existing = &FileRecord{Folder: folder, FileName: name}
			if mime != "" {
				existing.MimeType = &mime
			}
			if _, err := tx.Exec(`INSERT INTO files (folder, file_name, mime_type) VALUES (?, ?, ?)`,
				folder, name, strArg(existing.MimeType)); err != nil {
				return fmt.Errorf("insert bare row: %w", err)
			}
		} else if err != nil {
			return err
		}

		merged := mergeRecord(existing, partial)
		if err := writeRecord(tx, merged); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// mergeRecord overlays the non-nil fields of partial onto base, returning a
// new record. Nil fields in partial leave base's value untouched.
func mergeRecord(base, partial *FileRecord) *FileRecord {
	merged := *base

	if partial.MimeType != nil {
		merged.MimeType = partial.MimeType
	}
	if partial.SizeInBytes != nil {
		merged.SizeInBytes = partial.SizeInBytes
	}
	if partial.Created != nil {
		merged.Created = partial.Created
	}
	if partial.Modified != nil {
		merged.Modified = partial.Modified
	}
	if partial.DateTaken != nil {
		merged.DateTaken = partial.DateTaken
	}
	if partial.DimensionWidth != nil {
		merged.DimensionWidth = partial.DimensionWidth
	}
	if partial.DimensionHeight != nil {
		merged.DimensionHeight = partial.DimensionHeight
	}
	if partial.LocationLatitude != nil {
		merged.LocationLatitude = partial.LocationLatitude
	}
	if partial.LocationLongitude != nil {
		merged.LocationLongitude = partial.LocationLongitude
	}
	if partial.CameraMake != nil {
		merged.CameraMake = partial.CameraMake
	}
	if partial.CameraModel != nil {
		merged.CameraModel = partial.CameraModel
	}
	if partial.Exposure != nil {
		merged.Exposure = partial.Exposure
	}
	if partial.Aperture != nil {
		merged.Aperture = partial.Aperture
	}
	if partial.ISO != nil {
		merged.ISO = partial.ISO
	}
	if partial.FocalLength != nil {
		merged.FocalLength = partial.FocalLength
	}
	if partial.Lens != nil {
		merged.Lens = partial.Lens
	}
	if partial.VideoDurationMs != nil {
		merged.VideoDurationMs = partial.VideoDurationMs
	}
	if partial.VideoFramerate != nil {
		merged.VideoFramerate = partial.VideoFramerate
	}
	if partial.VideoCodec != nil {
		merged.VideoCodec = partial.VideoCodec
	}
	if partial.AudioCodec != nil {
		merged.AudioCodec = partial.AudioCodec
	}
	if partial.Rating != nil {
		merged.Rating = partial.Rating
	}
	if partial.Tags != nil {
		merged.Tags = partial.Tags
	}
	if partial.Orientation != nil {
		merged.Orientation = partial.Orientation
	}
	if partial.AIDescription != nil {
		merged.AIDescription = partial.AIDescription
	}
	if partial.AITags != nil {
		merged.AITags = partial.AITags
	}
	if partial.Faces != nil {
		merged.Faces = partial.Faces
	}
	if partial.InfoProcessedAt != nil {
		merged.InfoProcessedAt = partial.InfoProcessedAt
	}
	if partial.ExifProcessedAt != nil {
		merged.ExifProcessedAt = partial.ExifProcessedAt
	}
	if partial.AIProcessedAt != nil {
		merged.AIProcessedAt = partial.AIProcessedAt
	}
	if partial.FaceProcessedAt != nil {
		merged.FaceProcessedAt = partial.FaceProcessedAt
	}

	return &merged
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func writeRecord(tx execer, r *FileRecord) error {
	_, err := tx.Exec(`
		UPDATE files SET
			mime_type = ?, size_in_bytes = ?, created = ?, modified = ?,
			date_taken = ?, dimension_width = ?, dimension_height = ?,
			location_latitude = ?, location_longitude = ?,
			camera_make = ?, camera_model = ?, exposure = ?, aperture = ?, iso = ?, focal_length = ?, lens = ?,
			video_duration_ms = ?, video_framerate = ?, video_codec = ?, audio_codec = ?,
			rating = ?, tags = ?, orientation = ?,
			ai_description = ?, ai_tags = ?, faces = ?,
			info_processed_at = ?, exif_processed_at = ?, ai_processed_at = ?, face_processed_at = ?
		WHERE folder = ? AND file_name = ?
	`,
		strArg(r.MimeType), int64Arg(r.SizeInBytes), timeArg(r.Created), timeArg(r.Modified),
		timeArg(r.DateTaken), intArg(r.DimensionWidth), intArg(r.DimensionHeight),
		floatArg(r.LocationLatitude), floatArg(r.LocationLongitude),
		strArg(r.CameraMake), strArg(r.CameraModel), strArg(r.Exposure), floatArg(r.Aperture), intArg(r.ISO), floatArg(r.FocalLength), strArg(r.Lens),
		int64Arg(r.VideoDurationMs), floatArg(r.VideoFramerate), strArg(r.VideoCodec), strArg(r.AudioCodec),
		intArg(r.Rating), jsonTags(r.Tags), intArg(r.Orientation),
		strArg(r.AIDescription), jsonTags(r.AITags), jsonFaces(r.Faces),
		timeArg(r.InfoProcessedAt), timeArg(r.ExifProcessedAt), timeArg(r.AIProcessedAt), timeArg(r.FaceProcessedAt),
		r.Folder, r.FileName,
	)
	return err
}

// PopulateMissingMimeTypes fills mime_type for any legacy rows missing it,
// in a single transaction, per spec §4.7 "On open".
func (s *Store) PopulateMissingMimeTypes() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT folder, file_name FROM files WHERE mime_type IS NULL`)
	if err != nil {
		return 0, err
	}
	type key struct{ folder, name string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.folder, &k.name); err != nil {
			rows.Close()
			return 0, err
		}
		keys = append(keys, k)
	}
	rows.Close()

	if len(keys) == 0 {
		return 0, nil
	}

	updated := 0
	err = withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.Prepare(`UPDATE files SET mime_type = ? WHERE folder = ? AND file_name = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		updated = 0
		for _, k := range keys {
			mime := pathutil.MimeForFilename(k.name)
			if mime == "" {
				continue
			}
			if _, err := stmt.Exec(mime, k.folder, k.name); err != nil {
				return err
			}
			updated++
		}

		return tx.Commit()
	})

	return updated, err
}
