package index

// Field implements filter.Record, exposing FileRecord's attribute
// groups under the field names used by the filter AST (spec §4.6).
func (r *FileRecord) Field(name string) (interface{}, bool) {
	switch name {
	case "folder":
		return r.Folder, true
	case "fileName":
		return r.FileName, true
	case "mimeType":
		return derefStr(r.MimeType)
	case "sizeInBytes":
		return derefInt64(r.SizeInBytes)
	case "dateTaken":
		if r.DateTaken == nil {
			return nil, false
		}
		return r.DateTaken.Unix(), true
	case "dimensionWidth":
		return derefInt(r.DimensionWidth)
	case "dimensionHeight":
		return derefInt(r.DimensionHeight)
	case "locationLatitude":
		return derefFloat(r.LocationLatitude)
	case "locationLongitude":
		return derefFloat(r.LocationLongitude)
	case "cameraMake":
		return derefStr(r.CameraMake)
	case "cameraModel":
		return derefStr(r.CameraModel)
	case "exposure":
		return derefStr(r.Exposure)
	case "aperture":
		return derefFloat(r.Aperture)
	case "iso":
		return derefInt(r.ISO)
	case "focalLength":
		return derefFloat(r.FocalLength)
	case "lens":
		return derefStr(r.Lens)
	case "videoDurationMs":
		return derefInt64(r.VideoDurationMs)
	case "videoFramerate":
		return derefFloat(r.VideoFramerate)
	case "videoCodec":
		return derefStr(r.VideoCodec)
	case "audioCodec":
		return derefStr(r.AudioCodec)
	case "rating":
		return derefInt(r.Rating)
	case "orientation":
		return derefInt(r.Orientation)
	case "tags":
		if len(r.Tags) == 0 {
			return nil, false
		}
		return r.Tags, true
	default:
		return nil, false
	}
}

func derefStr(s *string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func derefInt(i *int) (interface{}, bool) {
	if i == nil {
		return nil, false
	}
	return *i, true
}

func derefInt64(i *int64) (interface{}, bool) {
	if i == nil {
		return nil, false
	}
	return *i, true
}

func derefFloat(f *float64) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}
