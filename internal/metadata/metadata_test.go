package metadata

import (
	"reflect"
	"testing"
)

func TestRotationToOrientation(t *testing.T) {
	cases := []struct {
		deg  int
		want *int
	}{
		{0, nil},
		{90, intPtr(6)},
		{180, intPtr(3)},
		{270, intPtr(8)},
	}
	for _, c := range cases {
		got := rotationToOrientation(c.deg)
		if (got == nil) != (c.want == nil) {
			t.Fatalf("rotationToOrientation(%d) = %v, want %v", c.deg, got, c.want)
		}
		if got != nil && *got != *c.want {
			t.Fatalf("rotationToOrientation(%d) = %d, want %d", c.deg, *got, *c.want)
		}
	}
}

func TestExpandHierarchicalTags(t *testing.T) {
	got := ExpandHierarchicalTags([]string{"Trips|2020|Italy", "Family"})
	want := []string{"Trips|2020|Italy", "Italy", "Family"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandHierarchicalTags = %v, want %v", got, want)
	}
}

func TestExpandHierarchicalTagsDedup(t *testing.T) {
	got := ExpandHierarchicalTags([]string{"A|B", "B"})
	want := []string{"A|B", "B"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandHierarchicalTags = %v, want %v", got, want)
	}
}

func intPtr(i int) *int { return &i }
