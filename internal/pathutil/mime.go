package pathutil

import "strings"

// mimeTable maps a trailing extension chain to a MIME type. Longer chains
// (checked first by MimeForFilename) take priority over shorter ones, so
// ".tar.gz" resolves before ".gz".
var mimeTable = map[string]string{
	// images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".raw":  "image/x-raw",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
	".arw":  "image/x-sony-arw",
	".dng":  "image/x-adobe-dng",

	// videos
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".m2ts": "video/mp2t",
	".ts":   "video/mp2t",
	".3gp":  "video/3gpp",

	// audio
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",

	// archives
	".zip":     "application/zip",
	".rar":     "application/vnd.rar",
	".7z":      "application/x-7z-compressed",
	".tar":     "application/x-tar",
	".gz":      "application/gzip",
	".tar.gz":  "application/gzip",
	".tgz":     "application/gzip",
	".bz2":     "application/x-bzip2",
	".tar.bz2": "application/x-bzip2",
	".xz":      "application/x-xz",
	".tar.xz":  "application/x-xz",

	// documents
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",

	// source
	".go":   "text/x-go",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".html": "text/html",
	".css":  "text/css",
}

// multiPartExtensions lists extension chains longer than one component, in
// the order they should be tried (longest first) before falling back to the
// single trailing extension.
var multiPartExtensions = []string{
	".tar.gz",
	".tar.bz2",
	".tar.xz",
}

// MimeForFilename returns the MIME type for name's extension, or "" if no
// entry matches. Multi-part extension chains (e.g. ".tar.gz") are preferred
// over their shorter suffix (".gz") when both appear in name.
func MimeForFilename(name string) string {
	lower := strings.ToLower(name)

	for _, ext := range multiPartExtensions {
		if strings.HasSuffix(lower, ext) {
			return mimeTable[ext]
		}
	}

	idx := strings.LastIndex(lower, ".")
	if idx < 0 {
		return ""
	}
	return mimeTable[lower[idx:]]
}

// IsMedia reports whether mime denotes an image or video (the two kinds
// that receive EXIF/container extraction and derivative generation).
func IsMedia(mime string) bool {
	return strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "video/")
}

// IsImage reports whether mime denotes an image.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// IsVideo reports whether mime denotes a video.
func IsVideo(mime string) bool {
	return strings.HasPrefix(mime, "video/")
}
