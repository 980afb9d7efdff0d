package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ashgrove/mediavault/internal/index"
)

// fileDTO mirrors index.FileRecord with the lowerCamel field names used
// throughout the filter AST and query-string grammar (spec §4.6, §6.2),
// since FileRecord itself carries no json tags (internal/index never
// serializes directly; it's the request orchestrator's job).
type fileDTO struct {
	Path     string  `json:"path"`
	Folder   string  `json:"folder"`
	FileName string  `json:"fileName"`
	MimeType *string `json:"mimeType,omitempty"`

	SizeInBytes *int64 `json:"sizeInBytes,omitempty"`
	Created     *string `json:"created,omitempty"`
	Modified    *string `json:"modified,omitempty"`

	DateTaken         *string  `json:"dateTaken,omitempty"`
	DimensionWidth    *int     `json:"dimensionWidth,omitempty"`
	DimensionHeight   *int     `json:"dimensionHeight,omitempty"`
	LocationLatitude  *float64 `json:"locationLatitude,omitempty"`
	LocationLongitude *float64 `json:"locationLongitude,omitempty"`
	CameraMake        *string  `json:"cameraMake,omitempty"`
	CameraModel       *string  `json:"cameraModel,omitempty"`
	Exposure          *string  `json:"exposure,omitempty"`
	Aperture          *float64 `json:"aperture,omitempty"`
	ISO               *int     `json:"iso,omitempty"`
	FocalLength       *float64 `json:"focalLength,omitempty"`
	Lens              *string  `json:"lens,omitempty"`
	VideoDurationMs   *int64   `json:"videoDurationMs,omitempty"`
	VideoFramerate    *float64 `json:"videoFramerate,omitempty"`
	VideoCodec        *string  `json:"videoCodec,omitempty"`
	AudioCodec        *string  `json:"audioCodec,omitempty"`
	Rating            *int     `json:"rating,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Orientation       *int     `json:"orientation,omitempty"`

	AIDescription *string  `json:"aiDescription,omitempty"`
	AITags        []string `json:"aiTags,omitempty"`
}

func toDTO(r *index.FileRecord) fileDTO {
	return fileDTO{
		Path:              r.RelativePath(),
		Folder:            r.Folder,
		FileName:          r.FileName,
		MimeType:          r.MimeType,
		SizeInBytes:       r.SizeInBytes,
		Created:           formatTime(r.Created),
		Modified:          formatTime(r.Modified),
		DateTaken:         formatTime(r.DateTaken),
		DimensionWidth:    r.DimensionWidth,
		DimensionHeight:   r.DimensionHeight,
		LocationLatitude:  r.LocationLatitude,
		LocationLongitude: r.LocationLongitude,
		CameraMake:        r.CameraMake,
		CameraModel:       r.CameraModel,
		Exposure:          r.Exposure,
		Aperture:          r.Aperture,
		ISO:               r.ISO,
		FocalLength:       r.FocalLength,
		Lens:              r.Lens,
		VideoDurationMs:   r.VideoDurationMs,
		VideoFramerate:    r.VideoFramerate,
		VideoCodec:        r.VideoCodec,
		AudioCodec:        r.AudioCodec,
		Rating:            r.Rating,
		Tags:              r.Tags,
		Orientation:       r.Orientation,
		AIDescription:     r.AIDescription,
		AITags:            r.AITags,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// parseMetadataFields parses the "metadata" query parameter: a JSON
// array or a comma-separated list of field names (spec §6.2). An empty
// raw value returns nil, meaning "no projection, include everything".
func parseMetadataFields(raw string) []string {
	if raw == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// projectRecord renders rec as JSON, narrowed to fields when non-empty
// (spec §6.2 "metadata - ... field names to include in result rows").
// "path", "folder", and "fileName" are always kept since callers use
// them to address the file.
func projectRecord(r *index.FileRecord, fields []string) (map[string]interface{}, error) {
	dto := toDTO(r)
	raw, err := json.Marshal(dto)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return m, nil
	}

	keep := map[string]bool{"path": true, "folder": true, "fileName": true}
	for _, f := range fields {
		keep[f] = true
	}
	for k := range m {
		if !keep[k] {
			delete(m, k)
		}
	}
	return m, nil
}
