package encoder

import (
	"strings"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	cases := map[string]float64{
		"30000/1001": 29.97002997002997,
		"30/1":       30,
		"0/0":        0,
		"":           0,
	}
	for in, want := range cases {
		got := parseFrameRate(in)
		if diff := got - want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("parseFrameRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalizeRotation(t *testing.T) {
	cases := map[int]int{
		0:    0,
		90:   90,
		-90:  270,
		450:  90,
		-450: 270,
	}
	for in, want := range cases {
		if got := normalizeRotation(in); got != want {
			t.Errorf("normalizeRotation(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsQuickTimeBrand(t *testing.T) {
	if !isQuickTimeBrand("mov,mp4,m4a,3gp,3g2,mj2") {
		t.Fatal("expected quicktime-family format to be detected")
	}
	if isQuickTimeBrand("matroska,webm") {
		t.Fatal("did not expect matroska to be detected as quicktime")
	}
}

func TestIsCorruptStderr(t *testing.T) {
	if !isCorruptStderr("Invalid data found when processing input") {
		t.Fatal("expected corrupt marker to match case-insensitively")
	}
	if isCorruptStderr("Unknown encoder 'libx264'") {
		t.Fatal("did not expect a missing-encoder error to be classified as corrupt input")
	}
}

func TestTailLines(t *testing.T) {
	big := strings.Repeat("x", 100)
	got := tailLines(strings.NewReader(big), 10)
	if got != strings.Repeat("x", 10) {
		t.Fatalf("tailLines did not truncate to the last N bytes: len=%d", len(got))
	}
}
