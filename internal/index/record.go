// Package index implements the durable, queryable catalog of media files
// described in spec §3 and §4.7. It owns the on-disk sqlite store
// exclusively; all other packages read through Store's query methods and
// write through its transactional upsert methods.
package index

import (
	"time"

	"github.com/ashgrove/mediavault/internal/pathutil"
)

// FaceTag is one reserved face-detection entry on a FileRecord (spec §3.1,
// "Face group"). The descriptor is an opaque embedding the system never
// interprets, only stores and returns.
type FaceTag struct {
	BBoxX, BBoxY, BBoxW, BBoxH float64
	Descriptor                 []byte
	PersonRef                  *string
	Verified                   *bool
}

// FileRecord is one row of the index: a path, its classification, and the
// attribute groups accumulated by enrichment. Pointer fields are nil when
// unknown; a non-nil pointer to a zero value is "known-empty" (used for the
// scalar columns where that distinction matters, e.g. Rating 0 vs unset).
type FileRecord struct {
	// Identity
	Folder   string // canonical: leading and trailing "/", root is "/"
	FileName string

	// Classification
	MimeType *string

	// File info group
	SizeInBytes *int64
	Created     *time.Time
	Modified    *time.Time

	// EXIF group
	DateTaken         *time.Time
	DimensionWidth    *int
	DimensionHeight   *int
	LocationLatitude  *float64
	LocationLongitude *float64
	CameraMake        *string
	CameraModel       *string
	Exposure          *string
	Aperture          *float64
	ISO               *int
	FocalLength       *float64
	Lens              *string
	VideoDurationMs   *int64
	VideoFramerate    *float64
	VideoCodec        *string
	AudioCodec        *string
	Rating            *int
	Tags              []string
	Orientation       *int

	// AI group (reserved)
	AIDescription *string
	AITags        []string

	// Face group (reserved)
	Faces []FaceTag

	// Processing watermarks: presence means an attempt completed.
	InfoProcessedAt  *time.Time
	ExifProcessedAt  *time.Time
	AIProcessedAt    *time.Time
	FaceProcessedAt  *time.Time
}

// RelativePath returns the derived view folder+fileName (spec §3.1).
func (r *FileRecord) RelativePath() string {
	if r.Folder == "/" {
		return r.FileName
	}
	return r.Folder[1:] + r.FileName
}

// IsMediaCandidate reports whether this record's MIME type makes it subject
// to EXIF extraction and derivative generation (spec §3.1 invariant).
func (r *FileRecord) IsMediaCandidate() bool {
	if r.MimeType == nil {
		return false
	}
	return pathutil.IsMedia(*r.MimeType)
}
