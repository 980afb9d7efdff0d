package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashgrove/mediavault/internal/apperr"
	"github.com/ashgrove/mediavault/internal/filter"
	"github.com/ashgrove/mediavault/internal/index"
	"github.com/ashgrove/mediavault/internal/pathutil"
)

// aggKey identifies an aggregate query for singleflight dedup: the kind
// of aggregate plus the raw query string is specific enough, since the
// compiled filter node is a pure function of relPath+query.
func aggKey(kind, relPath, rawQuery string) string {
	return kind + "\x00" + relPath + "\x00" + rawQuery
}

// handleFiles dispatches GET /api/files/<path> between query mode
// (trailing slash) and file mode (no trailing slash), per spec §4.9.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	isQuery := strings.HasSuffix(r.URL.Path, "/")
	relPath := strings.Trim(rest, "/")

	if isQuery {
		s.queryMode(w, r, relPath)
		return
	}
	s.fileMode(w, r, relPath)
}

// buildFolderFilter AND-combines the folder scope implied by relPath
// with any filter= query parameter (spec §4.9 "Compiles a folder filter
// ... AND-combined with any filter= query parameter").
func buildFolderFilter(relPath string, recursive bool, extra filter.Node) filter.Node {
	folder := pathutil.NormalizeFolder(relPath)
	folderNode := filter.FilterCondition{Fields: map[string]filter.Constraint{
		"folder": {IsFolderForm: true, Folder: &folder, Recursive: recursive},
	}}

	if extra == nil {
		return folderNode
	}
	return filter.LogicalFilter{Operation: "and", Conditions: []filter.Node{folderNode, extra}}
}

func (s *Server) queryMode(w http.ResponseWriter, r *http.Request, relPath string) {
	q := r.URL.Query()

	var extra filter.Node
	if raw := q.Get("filter"); raw != "" {
		n, err := filter.Parse(raw)
		if err != nil {
			writeErr(w, "bad_request", fmt.Errorf("%w: %v", apperr.ErrBadRequest, err))
			return
		}
		extra = n
	}

	recursive := q.Get("includeSubfolders") == "true"
	node := buildFolderFilter(relPath, recursive, extra)

	if q.Get("count") == "true" {
		v, err, _ := s.aggGroup.Do(aggKey("count", relPath, q.Encode()), func() (interface{}, error) {
			return s.idx.Count(node)
		})
		if err != nil {
			writeErr(w, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": v.(int)})
		return
	}

	switch q.Get("aggregate") {
	case "dateRange":
		v, err, _ := s.aggGroup.Do(aggKey("dateRange", relPath, q.Encode()), func() (interface{}, error) {
			return s.idx.DateRange(node)
		})
		if err != nil {
			writeErr(w, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, v)
		return
	case "dateHistogram":
		v, err, _ := s.aggGroup.Do(aggKey("dateHistogram", relPath, q.Encode()), func() (interface{}, error) {
			return s.idx.DateHistogram(node)
		})
		if err != nil {
			writeErr(w, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"buckets": v})
		return
	}

	if q.Get("cluster") == "true" {
		clusterSize, _ := strconv.ParseFloat(q.Get("clusterSize"), 64)
		var bounds *index.GeoBounds
		if q.Has("west") && q.Has("south") {
			west, _ := strconv.ParseFloat(q.Get("west"), 64)
			south, _ := strconv.ParseFloat(q.Get("south"), 64)
			bounds = &index.GeoBounds{SWLat: south, SWLon: west}
		}
		v, err, _ := s.aggGroup.Do(aggKey("cluster", relPath, q.Encode()), func() (interface{}, error) {
			return s.idx.GeoClusters(node, clusterSize, bounds)
		})
		if err != nil {
			writeErr(w, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"clusters": v})
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	fields := parseMetadataFields(q.Get("metadata"))

	result, err := s.idx.Query(index.QueryOptions{Filter: node, Page: page, PageSize: pageSize})
	if err != nil {
		writeErr(w, "internal_error", err)
		return
	}

	items := make([]map[string]interface{}, 0, len(result.Items))
	for _, rec := range result.Items {
		m, err := projectRecord(rec, fields)
		if err != nil {
			writeErr(w, "response_too_large", apperr.ErrResponseTooLarge)
			return
		}
		items = append(items, m)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    items,
		"total":    result.Total,
		"page":     result.Page,
		"pageSize": result.PageSize,
	})
}

