package index

import (
	"testing"
	"time"

	"github.com/ashgrove/mediavault/internal/filter"
)

func seedDated(t *testing.T, s *Store, relPath string, dateTaken time.Time, mime string) {
	t.Helper()
	if err := s.AddOrUpdateFileData(relPath, &FileRecord{DateTaken: &dateTaken, MimeType: &mime}); err != nil {
		t.Fatalf("seed %s: %v", relPath, err)
	}
}

func TestQuerySortOrder(t *testing.T) {
	s := openTestStore(t)

	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	seedDated(t, s, "b.jpg", d1, "image/jpeg")
	seedDated(t, s, "a.jpg", d2, "image/jpeg")
	if err := s.AddOrUpdateFileData("c.jpg", nil); err != nil { // no dateTaken -> sorts last
		t.Fatalf("seed c.jpg: %v", err)
	}

	result, err := s.Query(QueryOptions{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("Total = %d, want 3", result.Total)
	}
	if len(result.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(result.Items))
	}
	if result.Items[0].FileName != "a.jpg" || result.Items[1].FileName != "b.jpg" || result.Items[2].FileName != "c.jpg" {
		names := []string{result.Items[0].FileName, result.Items[1].FileName, result.Items[2].FileName}
		t.Fatalf("sort order = %v, want [a.jpg b.jpg c.jpg] (dateTaken DESC, nulls last)", names)
	}
}

func TestQueryPaginationReproducesUnpagedResult(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 7; i++ {
		name := string(rune('a' + i))
		if err := s.AddOrUpdateFileData(name+".jpg", nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	full, err := s.Query(QueryOptions{Page: 1, PageSize: 100})
	if err != nil {
		t.Fatalf("Query full: %v", err)
	}

	pageSize := 3
	var paged []*FileRecord
	pages := (full.Total + pageSize - 1) / pageSize
	for p := 1; p <= pages; p++ {
		r, err := s.Query(QueryOptions{Page: p, PageSize: pageSize})
		if err != nil {
			t.Fatalf("Query page %d: %v", p, err)
		}
		paged = append(paged, r.Items...)
	}

	if len(paged) != len(full.Items) {
		t.Fatalf("paged total items = %d, want %d", len(paged), len(full.Items))
	}
	for i := range full.Items {
		if full.Items[i].FileName != paged[i].FileName {
			t.Fatalf("item %d mismatch: unpaged=%s paged=%s", i, full.Items[i].FileName, paged[i].FileName)
		}
	}
}

func TestCountMatchesQueryTotal(t *testing.T) {
	s := openTestStore(t)
	mimeJPEG := "image/jpeg"
	mimeMP4 := "video/mp4"
	if err := s.AddOrUpdateFileData("a.jpg", &FileRecord{MimeType: &mimeJPEG}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.AddOrUpdateFileData("b.mp4", &FileRecord{MimeType: &mimeMP4}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f := filter.FilterCondition{Fields: map[string]filter.Constraint{"mimeType": {Exact: "image/jpeg"}}}

	n, err := s.Count(f)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	result, err := s.Query(QueryOptions{Filter: f, Page: 1, PageSize: 1 << 20})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if n != result.Total {
		t.Fatalf("Count() = %d, Query().Total = %d, want equal", n, result.Total)
	}
	if n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
}

func TestFoldersReturnsDirectChildrenOnly(t *testing.T) {
	s := openTestStore(t)
	for _, p := range []string{"a.jpg", "2020/jan.jpg", "2020/feb/deep.jpg", "2021/jan.jpg"} {
		if err := s.AddOrUpdateFileData(p, nil); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}

	children, err := s.Folders("/")
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	want := []string{"2020", "2021"}
	if len(children) != len(want) {
		t.Fatalf("Folders(/) = %v, want %v", children, want)
	}
	for i, w := range want {
		if children[i] != w {
			t.Fatalf("Folders(/) = %v, want %v", children, want)
		}
	}

	nested, err := s.Folders("/2020/")
	if err != nil {
		t.Fatalf("Folders nested: %v", err)
	}
	if len(nested) != 1 || nested[0] != "feb" {
		t.Fatalf("Folders(/2020/) = %v, want [feb]", nested)
	}
}

func TestDateHistogramGranularity(t *testing.T) {
	s := openTestStore(t)
	short1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	short2 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	seedDated(t, s, "a.jpg", short1, "image/jpeg")
	seedDated(t, s, "b.jpg", short2, "image/jpeg")

	buckets, err := s.DateHistogram(nil)
	if err != nil {
		t.Fatalf("DateHistogram: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected one bucket per day for a 1-day span, got %d buckets", len(buckets))
	}
	for _, b := range buckets {
		if b.End.Sub(b.Start) != 24*time.Hour {
			t.Errorf("bucket span = %v, want 24h for a short date range", b.End.Sub(b.Start))
		}
	}
}

func TestDateHistogramMonthlyForLongSpan(t *testing.T) {
	s := openTestStore(t)
	d1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	seedDated(t, s, "a.jpg", d1, "image/jpeg")
	seedDated(t, s, "b.jpg", d2, "image/jpeg")

	buckets, err := s.DateHistogram(nil)
	if err != nil {
		t.Fatalf("DateHistogram: %v", err)
	}
	for _, b := range buckets {
		days := int(b.End.Sub(b.Start).Hours() / 24)
		if days < 28 {
			t.Errorf("expected month-sized bucket for a multi-year span, got a %d-day bucket", days)
		}
	}
}

func TestGeoClustersQuantisesAndSamples(t *testing.T) {
	s := openTestStore(t)
	lat1, lon1 := 40.50, -74.50
	lat2, lon2 := 40.60, -74.60
	lat3, lon3 := 10.0, 10.0
	if err := s.AddOrUpdateFileData("a.jpg", &FileRecord{LocationLatitude: &lat1, LocationLongitude: &lon1}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.AddOrUpdateFileData("b.jpg", &FileRecord{LocationLatitude: &lat2, LocationLongitude: &lon2}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.AddOrUpdateFileData("c.jpg", &FileRecord{LocationLatitude: &lat3, LocationLongitude: &lon3}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clusters, err := s.GeoClusters(nil, 1.0, nil)
	if err != nil {
		t.Fatalf("GeoClusters: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters at 1-degree granularity, got %d: %+v", len(clusters), clusters)
	}
	var total int
	for _, c := range clusters {
		total += c.Count
		if c.SampleFileName == "" {
			t.Error("expected a deterministic sample member per cluster")
		}
	}
	if total != 3 {
		t.Fatalf("cluster counts sum to %d, want 3", total)
	}
}
