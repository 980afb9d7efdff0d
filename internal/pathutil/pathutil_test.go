package pathutil

import "testing"

func TestNormalizeFolder(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"a":       "/a/",
		"/a":      "/a/",
		"a/":      "/a/",
		"/a/b":    "/a/b/",
		"/a/b/":   "/a/b/",
		"//a//b":  "/a/b/",
	}
	for in, want := range cases {
		if got := NormalizeFolder(in); got != want {
			t.Errorf("NormalizeFolder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeFolderIdempotent(t *testing.T) {
	for _, in := range []string{"", "/", "a", "/a/b", "a/b/c/"} {
		once := NormalizeFolder(in)
		twice := NormalizeFolder(once)
		if once != twice {
			t.Errorf("NormalizeFolder not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestSplitJoin(t *testing.T) {
	cases := []struct {
		rel    string
		folder string
		name   string
	}{
		{"photo.jpg", "/", "photo.jpg"},
		{"a/b/c.jpg", "/a/b/", "c.jpg"},
		{"/a/b/c.jpg", "/a/b/", "c.jpg"},
	}
	for _, c := range cases {
		folder, name := Split(c.rel)
		if folder != c.folder || name != c.name {
			t.Errorf("Split(%q) = (%q, %q), want (%q, %q)", c.rel, folder, name, c.folder, c.name)
		}
		if joined := Join(folder, name); joined != Join(c.folder, c.name) {
			t.Errorf("Join(%q, %q) = %q", folder, name, joined)
		}
	}
}

func TestToRelative(t *testing.T) {
	root := "/media"
	rel, err := ToRelative(root, "/media/a/b.jpg")
	if err != nil || rel != "a/b.jpg" {
		t.Fatalf("ToRelative = (%q, %v), want (\"a/b.jpg\", nil)", rel, err)
	}

	if _, err := ToRelative(root, "/other/b.jpg"); err != ErrPathEscape {
		t.Fatalf("expected ErrPathEscape, got %v", err)
	}

	if _, err := ToRelative(root, "/media/../other/b.jpg"); err != ErrPathEscape {
		t.Fatalf("expected ErrPathEscape for traversal, got %v", err)
	}
}

func TestMimeForFilename(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":     "image/jpeg",
		"clip.mp4":      "video/mp4",
		"archive.tar.gz": "application/gzip",
		"archive.gz":    "application/gzip",
		"unknown.xyz":   "",
	}
	for name, want := range cases {
		if got := MimeForFilename(name); got != want {
			t.Errorf("MimeForFilename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestIsMedia(t *testing.T) {
	if !IsMedia("image/jpeg") || !IsMedia("video/mp4") {
		t.Error("expected image/video to be media")
	}
	if IsMedia("application/pdf") {
		t.Error("expected pdf to not be media")
	}
}
