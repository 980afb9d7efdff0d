// Package metadata implements the extraction rules of spec §4.5: given
// an absolute path, produce the EXIF-group attribute set for a
// FileRecord, dispatching on MIME type to a video or image path. The
// image path leans on github.com/rwcarlsen/goexif the way
// other_examples/Owen-3456-photo-sorter reads EXIF dates; the video
// path wraps internal/encoder's ffprobe adapter.
package metadata

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/encoder"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/pathutil"
)

// Extractor produces EXIF-group attributes for files, per spec §4.5.
type Extractor struct {
	Video *encoder.VideoTool
}

// NewExtractor returns an Extractor using the given video probe tool.
func NewExtractor(video *encoder.VideoTool) *Extractor {
	return &Extractor{Video: video}
}

// FileInfo stats path, failing if it is not a regular file (spec §4.5
// "getFileInfo").
func FileInfo(path string) (size int64, modified time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	if !info.Mode().IsRegular() {
		return 0, time.Time{}, fmt.Errorf("%w: not a regular file", apperr.ErrBadRequest)
	}
	return info.Size(), info.ModTime(), nil
}

// Extract dispatches on mimeType and fills the EXIF group of a partial
// FileRecord. Non-media MIME types return an empty, non-nil record.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (*index.FileRecord, error) {
	partial := &index.FileRecord{}

	switch {
	case pathutil.IsVideo(mimeType):
		return e.extractVideo(ctx, path)
	case pathutil.IsImage(mimeType):
		rec, err := e.extractImage(path)
		if err != nil && isCorruptInput(err) && hasQuickTimeBrand(path) {
			return e.extractVideo(ctx, path)
		}
		return rec, err
	default:
		return partial, nil
	}
}

func isCorruptInput(err error) bool {
	return err != nil && strings.Contains(err.Error(), apperr.ErrCorruptInput.Error())
}

// hasQuickTimeBrand checks bytes 8-12 for a "qt" brand or a "moov"
// marker, the signature of a QuickTime-family container masquerading
// under an image extension (spec §4.5 "QuickTime brand").
func hasQuickTimeBrand(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 12)
	n, err := f.Read(buf)
	if err != nil || n < 12 {
		return false
	}
	brand := string(buf[8:12])
	return strings.HasPrefix(brand, "qt") || brand == "moov"
}

func (e *Extractor) extractVideo(ctx context.Context, path string) (*index.FileRecord, error) {
	probe, err := e.Video.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	rec := &index.FileRecord{}

	durationMs := probe.DurationMs
	rec.VideoDurationMs = &durationMs

	width, height := probe.Width, probe.Height
	orientation := rotationToOrientation(probe.RotationDeg)
	if orientation != nil && (probe.RotationDeg == 90 || probe.RotationDeg == 270) {
		width, height = height, width
	}
	if width > 0 {
		rec.DimensionWidth = &width
	}
	if height > 0 {
		rec.DimensionHeight = &height
	}
	rec.Orientation = orientation

	if probe.VideoCodec != "" {
		codec := probe.VideoCodec
		rec.VideoCodec = &codec
	}
	if probe.AudioCodec != "" {
		codec := probe.AudioCodec
		rec.AudioCodec = &codec
	}
	if probe.FrameRate > 0 {
		fr := probe.FrameRate
		rec.VideoFramerate = &fr
	}

	return rec, nil
}

// rotationToOrientation maps a normalised [0,360) rotation degree to
// the corresponding EXIF orientation code (spec §4.5: 90->6, 180->3,
// 270->8; 0 has no orientation tag).
func rotationToOrientation(deg int) *int {
	var code int
	switch deg {
	case 90:
		code = 6
	case 180:
		code = 3
	case 270:
		code = 8
	default:
		return nil
	}
	return &code
}

func (e *Extractor) extractImage(path string) (*index.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// An undecodable file with a QuickTime brand is reported as
		// corrupt so Extract retries it as a video.
		if hasQuickTimeBrand(path) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrCorruptInput, err)
		}
		// Many images carry no EXIF at all; that is not an error.
		return &index.FileRecord{}, nil
	}

	rec := &index.FileRecord{}
	applyFieldTable(rec, x)
	return rec, nil
}

// fieldRule is one entry of the declarative exifField -> (targetField,
// converter) table (spec §4.5). Multiple rules may target the same
// field; rules are applied in table order so "last non-empty wins".
type fieldRule struct {
	tag       exif.FieldName
	apply     func(rec *index.FileRecord, x *exif.Exif)
}

func applyFieldTable(rec *index.FileRecord, x *exif.Exif) {
	for _, rule := range fieldTable {
		rule.apply(rec, x)
	}
}

// Date tags are declared least-authoritative first: with "last
// non-empty wins", DateTimeOriginal (the moment of capture) overwrites
// DateTimeDigitized, which overwrites the file's last-saved DateTime,
// for files that carry more than one.
var fieldTable = []fieldRule{
	{tag: exif.DateTime, apply: applyDateTaken(exif.DateTime)},
	{tag: exif.DateTimeDigitized, apply: applyDateTaken(exif.DateTimeDigitized)},
	{tag: exif.DateTimeOriginal, apply: applyDateTaken(exif.DateTimeOriginal)},
	{tag: exif.Make, apply: applyString(exif.Make, func(r *index.FileRecord) **string { return &r.CameraMake })},
	{tag: exif.Model, apply: applyString(exif.Model, func(r *index.FileRecord) **string { return &r.CameraModel })},
	{tag: exif.LensModel, apply: applyString(exif.LensModel, func(r *index.FileRecord) **string { return &r.Lens })},
	{tag: exif.FNumber, apply: applyRational(exif.FNumber, func(r *index.FileRecord) **float64 { return &r.Aperture })},
	{tag: exif.FocalLength, apply: applyRational(exif.FocalLength, func(r *index.FileRecord) **float64 { return &r.FocalLength })},
	{tag: exif.ISOSpeedRatings, apply: applyInt(exif.ISOSpeedRatings, func(r *index.FileRecord) **int { return &r.ISO })},
	{tag: exif.ExposureTime, apply: applyExposure},
	{tag: exif.PixelXDimension, apply: applyInt(exif.PixelXDimension, func(r *index.FileRecord) **int { return &r.DimensionWidth })},
	{tag: exif.PixelYDimension, apply: applyInt(exif.PixelYDimension, func(r *index.FileRecord) **int { return &r.DimensionHeight })},
	{tag: exif.Orientation, apply: applyInt(exif.Orientation, func(r *index.FileRecord) **int { return &r.Orientation })},
	{tag: ratingFieldName, apply: applyRatingPercent},
	{tag: exif.GPSLatitude, apply: applyGPS},
}

func applyDateTaken(tagName exif.FieldName) func(*index.FileRecord, *exif.Exif) {
	return func(rec *index.FileRecord, x *exif.Exif) {
		tag, err := x.Get(tagName)
		if err != nil {
			return
		}
		s, err := tag.StringVal()
		if err != nil || s == "" {
			return
		}
		t, err := time.Parse("2006:01:02 15:04:05", s)
		if err != nil {
			return
		}
		rec.DateTaken = &t
	}
}

func applyString(tagName exif.FieldName, field func(*index.FileRecord) **string) func(*index.FileRecord, *exif.Exif) {
	return func(rec *index.FileRecord, x *exif.Exif) {
		tag, err := x.Get(tagName)
		if err != nil {
			return
		}
		s, err := tag.StringVal()
		if err != nil || s == "" {
			return
		}
		*field(rec) = &s
	}
}

func applyInt(tagName exif.FieldName, field func(*index.FileRecord) **int) func(*index.FileRecord, *exif.Exif) {
	return func(rec *index.FileRecord, x *exif.Exif) {
		tag, err := x.Get(tagName)
		if err != nil {
			return
		}
		n, err := tag.Int(0)
		if err != nil {
			return
		}
		*field(rec) = &n
	}
}

func applyRational(tagName exif.FieldName, field func(*index.FileRecord) **float64) func(*index.FileRecord, *exif.Exif) {
	return func(rec *index.FileRecord, x *exif.Exif) {
		tag, err := x.Get(tagName)
		if err != nil {
			return
		}
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return
		}
		v := float64(num) / float64(den)
		*field(rec) = &v
	}
}

func applyExposure(rec *index.FileRecord, x *exif.Exif) {
	tag, err := x.Get(exif.ExposureTime)
	if err != nil {
		return
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return
	}
	s := fmt.Sprintf("%d/%d", num, den)
	rec.Exposure = &s
}

// ratingFieldName is not part of goexif's standard field registry (the
// Windows Rating tag is a private extension); looking it up by name
// simply fails to match for files that use the standard tag set,
// which is the same behaviour as any other absent tag.
const ratingFieldName = exif.FieldName("Rating")

// applyRatingPercent converts the Windows-style Rating tag (0-100) to
// the 0-5 integer scale (spec §4.5).
func applyRatingPercent(rec *index.FileRecord, x *exif.Exif) {
	tag, err := x.Get(ratingFieldName)
	if err != nil {
		return
	}
	n, err := tag.Int(0)
	if err != nil {
		return
	}
	percent := n
	if percent > 100 {
		// Values above 100 are clamped. Every stored value is read
		// as a percentage, so a raw 0-5 rating scales to 0.
		percent = 100
	}
	stars := int(float64(percent) / 100 * 5)
	rec.Rating = &stars
}

// applyGPS converts GPSLatitude/GPSLongitude DMS rational arrays to
// signed decimal degrees using the Ref tags (spec §4.5).
func applyGPS(rec *index.FileRecord, x *exif.Exif) {
	lat, err := dmsToDecimal(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	if err == nil {
		rec.LocationLatitude = &lat
	}
	lon, err := dmsToDecimal(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if err == nil {
		rec.LocationLongitude = &lon
	}
}

func dmsToDecimal(x *exif.Exif, dmsTag, refTag exif.FieldName, negativeRef string) (float64, error) {
	tag, err := x.Get(dmsTag)
	if err != nil {
		return 0, err
	}
	if tag.Count != 3 {
		return 0, fmt.Errorf("unexpected DMS component count: %d", tag.Count)
	}

	degNum, degDen, err := tag.Rat2(0)
	if err != nil || degDen == 0 {
		return 0, fmt.Errorf("invalid degrees component")
	}
	minNum, minDen, err := tag.Rat2(1)
	if err != nil || minDen == 0 {
		return 0, fmt.Errorf("invalid minutes component")
	}
	secNum, secDen, err := tag.Rat2(2)
	if err != nil || secDen == 0 {
		return 0, fmt.Errorf("invalid seconds component")
	}

	deg := float64(degNum) / float64(degDen)
	min := float64(minNum) / float64(minDen)
	sec := float64(secNum) / float64(secDen)
	decimal := deg + min/60 + sec/3600

	if refTag != "" {
		if refValTag, err := x.Get(refTag); err == nil {
			if ref, err := refValTag.StringVal(); err == nil && strings.EqualFold(strings.TrimSpace(ref), negativeRef) {
				decimal = -decimal
			}
		}
	}

	return decimal, nil
}

// ExpandHierarchicalTags splits "|"-delimited hierarchical tags,
// contributing both the full path and the leaf segment as tags (spec
// §4.5).
func ExpandHierarchicalTags(raw []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, tag := range raw {
		add(tag)
		if idx := strings.LastIndex(tag, "|"); idx >= 0 {
			add(tag[idx+1:])
		}
	}

	return out
}

