package index

import (
	"database/sql"
	"time"
)

const selectColumns = `folder, file_name, mime_type, size_in_bytes, created, modified,
	date_taken, dimension_width, dimension_height, location_latitude, location_longitude,
	camera_make, camera_model, exposure, aperture, iso, focal_length, lens,
	video_duration_ms, video_framerate, video_codec, audio_codec, rating, tags, orientation,
	ai_description, ai_tags, faces,
	info_processed_at, exif_processed_at, ai_processed_at, face_processed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var r FileRecord
	var mimeType, created, modified, dateTaken sql.NullString
	var sizeInBytes sql.NullInt64
	var dimW, dimH sql.NullInt64
	var lat, lon sql.NullFloat64
	var cameraMake, cameraModel, exposure, lens sql.NullString
	var aperture, focalLength sql.NullFloat64
	var iso sql.NullInt64
	var videoDuration sql.NullInt64
	var videoFramerate sql.NullFloat64
	var videoCodec, audioCodec sql.NullString
	var rating sql.NullInt64
	var tags sql.NullString
	var orientation sql.NullInt64
	var aiDescription sql.NullString
	var aiTags sql.NullString
	var faces sql.NullString
	var infoAt, exifAt, aiAt, faceAt sql.NullString

	err := row.Scan(
		&r.Folder, &r.FileName, &mimeType, &sizeInBytes, &created, &modified,
		&dateTaken, &dimW, &dimH, &lat, &lon,
		&cameraMake, &cameraModel, &exposure, &aperture, &iso, &focalLength, &lens,
		&videoDuration, &videoFramerate, &videoCodec, &audioCodec, &rating, &tags, &orientation,
		&aiDescription, &aiTags, &faces,
		&infoAt, &exifAt, &aiAt, &faceAt,
	)
	if err != nil {
		return nil, err
	}

	r.MimeType = nullStr(mimeType)
	r.SizeInBytes = nullInt64(sizeInBytes)
	r.Created = nullTime(created)
	r.Modified = nullTime(modified)
	r.DateTaken = nullTime(dateTaken)
	r.DimensionWidth = nullInt(dimW)
	r.DimensionHeight = nullInt(dimH)
	r.LocationLatitude = nullFloat(lat)
	r.LocationLongitude = nullFloat(lon)
	r.CameraMake = nullStr(cameraMake)
	r.CameraModel = nullStr(cameraModel)
	r.Exposure = nullStr(exposure)
	r.Aperture = nullFloat(aperture)
	r.ISO = nullInt(iso)
	r.FocalLength = nullFloat(focalLength)
	r.Lens = nullStr(lens)
	r.VideoDurationMs = nullInt64(videoDuration)
	r.VideoFramerate = nullFloat(videoFramerate)
	r.VideoCodec = nullStr(videoCodec)
	r.AudioCodec = nullStr(audioCodec)
	r.Rating = nullInt(rating)
	r.Tags = parseTags(tags)
	r.Orientation = nullInt(orientation)
	r.AIDescription = nullStr(aiDescription)
	r.AITags = parseTags(aiTags)
	r.Faces = parseFaces(faces)
	r.InfoProcessedAt = nullTime(infoAt)
	r.ExifProcessedAt = nullTime(exifAt)
	r.AIProcessedAt = nullTime(aiAt)
	r.FaceProcessedAt = nullTime(faceAt)

	return &r, nil
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt64(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

func nullInt(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func int64Arg(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func intArg(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func floatArg(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func strArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
