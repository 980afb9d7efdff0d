package index

import (
	"fmt"
	"math"
	"time"

	"github.com/ashgrove/mediavault/internal/filter"
)

// QueryOptions controls pagination and sorting for Query, per spec §4.6.
type QueryOptions struct {
	Filter   filter.Node
	Page     int // 1-indexed
	PageSize int
}

// QueryResult is the shape returned by Query.
type QueryResult struct {
	Items    []*FileRecord
	Total    int
	Page     int
	PageSize int
}

const orderBy = `ORDER BY (date_taken IS NULL) ASC, date_taken DESC, folder ASC, file_name ASC`

// Query runs a filtered, sorted, paginated scan of the index (spec
// §4.6 "query"). Sort order is dateTaken DESC with nulls last, then
// folder ASC, then fileName ASC; pagination is 1-indexed.
func (s *Store) Query(opts QueryOptions) (*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := filter.Compile(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	total, err := s.countForPlan(opts.Filter, plan)
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = total
		if pageSize == 0 {
			pageSize = 1
		}
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s %s LIMIT ? OFFSET ?`, selectColumns, plan.Where, orderBy)
	args := append(append([]interface{}{}, plan.Args...), pageSize, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*FileRecord
	if items, err = s.applyRegexRefinement(opts.Filter, rows); err != nil {
		return nil, err
	}

	return &QueryResult{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// applyRegexRefinement re-checks rows against the full filter tree in
// memory, since the SQL plan may have lowered a regex constraint to
// "match everything" (compile.go). For filters without a regex
// constraint this is a cheap no-op re-check.
func (s *Store) applyRegexRefinement(n filter.Node, rows interface {
	Next() bool
	Scan(dest ...interface{}) error
}) ([]*FileRecord, error) {
	var out []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ok, err := filter.Match(n, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of rows matching filter f (spec §4.6
// "count"). It satisfies count(F) == Query(F, page=1, pageSize=total).Total
// by construction: both route through countForPlan with the identical
// compiled plan.
func (s *Store) Count(f filter.Node) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := filter.Compile(f)
	if err != nil {
		return 0, err
	}
	return s.countForPlan(f, plan)
}

// countForPlan returns the exact number of rows matching f. Most filter
// shapes compile to an exact SQL predicate, so a plain COUNT(*) under
// plan is already correct; regex and glob constraints compile to a
// conservative superset (compile.go), so for those countForPlan re-scans
// the superset and re-checks each row with filter.Match, the same
// refinement Query already applies to its page of Items, so Count and
// Query's Total never disagree with §4.6's exact-match semantics.
func (s *Store) countForPlan(f filter.Node, plan filter.Plan) (int, error) {
	if !filter.NeedsRefinement(f) {
		return s.countLocked(plan)
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE %s`, selectColumns, plan.Where)
	rows, err := s.db.Query(query, plan.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	items, err := s.applyRegexRefinement(f, rows)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) countLocked(plan filter.Plan) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM files WHERE ` + plan.Where
	err := s.db.QueryRow(query, plan.Args...).Scan(&n)
	return n, err
}

// Folders returns the sorted, distinct direct child folder names under
// path (spec §4.6 "folders").
func (s *Store) Folders(path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT folder FROM files WHERE folder LIKE ?`, path+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	var children []string
	for rows.Next() {
		var folder string
		if err := rows.Scan(&folder); err != nil {
			return nil, err
		}
		child := directChild(path, folder)
		if child != "" && !seen[child] {
			seen[child] = true
			children = append(children, child)
		}
	}

	sortStrings(children)
	return children, nil
}

func directChild(base, folder string) string {
	if len(folder) <= len(base) || folder[:len(base)] != base {
		return ""
	}
	rest := folder[len(base):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			if i == 0 {
				continue
			}
			return rest[:i]
		}
	}
	return ""
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// DateRangeResult is the shape returned by DateRange.
type DateRangeResult struct {
	MinDate *time.Time
	MaxDate *time.Time
}

// DateRange returns the min/max dateTaken among rows matching f (spec
// §4.6 "dateRange").
func (s *Store) DateRange(f filter.Node) (*DateRangeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}

	query := `SELECT MIN(date_taken), MAX(date_taken) FROM files WHERE ` + plan.Where + ` AND date_taken IS NOT NULL`
	var minS, maxS *string
	if err := s.db.QueryRow(query, plan.Args...).Scan(&minS, &maxS); err != nil {
		return nil, err
	}

	result := &DateRangeResult{}
	if minS != nil {
		if t, err := time.Parse(time.RFC3339Nano, *minS); err == nil {
			result.MinDate = &t
		}
	}
	if maxS != nil {
		if t, err := time.Parse(time.RFC3339Nano, *maxS); err == nil {
			result.MaxDate = &t
		}
	}
	return result, nil
}

// HistogramBucket is one bucket of DateHistogram's result.
type HistogramBucket struct {
	Start time.Time // inclusive UTC midnight
	End   time.Time // exclusive UTC midnight
	Count int
}

// DateHistogram buckets matching rows by day or month, per spec §4.6:
// day granularity if the span is <= ~120 days or <= 2 calendar months,
// else month granularity.
func (s *Store) DateHistogram(f filter.Node) ([]HistogramBucket, error) {
	dr, err := s.DateRange(f)
	if err != nil {
		return nil, err
	}
	if dr.MinDate == nil || dr.MaxDate == nil {
		return nil, nil
	}

	min := dr.MinDate.UTC()
	max := dr.MaxDate.UTC()
	span := max.Sub(min)
	monthSpan := monthsBetween(min, max)
	daily := span <= 120*24*time.Hour || monthSpan <= 2

	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}

	query := `SELECT date_taken FROM files WHERE ` + plan.Where + ` AND date_taken IS NOT NULL`
	rows, err := s.db.Query(query, plan.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[time.Time]int{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		var bucket time.Time
		if daily {
			bucket = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		} else {
			bucket = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		counts[bucket]++
	}

	var buckets []HistogramBucket
	for start, count := range counts {
		var end time.Time
		if daily {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.AddDate(0, 1, 0)
		}
		buckets = append(buckets, HistogramBucket{Start: start, End: end, Count: count})
	}

	sortBuckets(buckets)
	return buckets, nil
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func sortBuckets(b []HistogramBucket) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1].Start.After(b[j].Start); j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}

// GeoBounds carries the south-west corner that GeoClusters aligns its
// grid to (spec §4.6 "bounds"). Rows outside any box are not excluded.
type GeoBounds struct {
	SWLat, SWLon float64
}

// GeoCluster is one cell of GeoClusters' result.
type GeoCluster struct {
	CenterLat, CenterLon float64
	Count                int
	SampleFolder         string
	SampleFileName       string
}

// GeoClusters quantises matching rows' (lat, lon) to a clusterSize-degree
// grid aligned to bounds.sw, per spec §4.6 "geoClusters".
func (s *Store) GeoClusters(f filter.Node, clusterSize float64, bounds *GeoBounds) ([]GeoCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}

	if clusterSize <= 0 {
		clusterSize = 1
	}
	swLat, swLon := 0.0, 0.0
	if bounds != nil {
		swLat, swLon = bounds.SWLat, bounds.SWLon
	}

	query := fmt.Sprintf(`SELECT folder, file_name, location_latitude, location_longitude FROM files
		WHERE %s AND location_latitude IS NOT NULL AND location_longitude IS NOT NULL
		ORDER BY folder ASC, file_name ASC`, plan.Where)
	rows, err := s.db.Query(query, plan.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type cell struct {
		count          int
		sumLat, sumLon float64
		sampleFolder   string
		sampleFileName string
		hasSample      bool
	}
	cells := map[[2]int64]*cell{}
	var order [][2]int64

	for rows.Next() {
		var folder, fileName string
		var lat, lon float64
		if err := rows.Scan(&folder, &fileName, &lat, &lon); err != nil {
			return nil, err
		}

		gx := int64(math.Floor((lon - swLon) / clusterSize))
		gy := int64(math.Floor((lat - swLat) / clusterSize))
		key := [2]int64{gx, gy}

		c, ok := cells[key]
		if !ok {
			c = &cell{}
			cells[key] = c
			order = append(order, key)
		}
		c.count++
		c.sumLat += lat
		c.sumLon += lon
		if !c.hasSample {
			c.sampleFolder = folder
			c.sampleFileName = fileName
			c.hasSample = true
		}
	}

	clusters := make([]GeoCluster, 0, len(order))
	for _, key := range order {
		c := cells[key]
		clusters = append(clusters, GeoCluster{
			CenterLat:      swLat + (float64(key[1])+0.5)*clusterSize,
			CenterLon:      swLon + (float64(key[0])+0.5)*clusterSize,
			Count:          c.count,
			SampleFolder:   c.sampleFolder,
			SampleFileName: c.sampleFileName,
		})
	}

	return clusters, nil
}
