package filter

import (
	"fmt"
	"strings"
)

// fieldColumns maps filter field names to their backing SQL column,
// mirroring the FileRecord groups in internal/index.
var fieldColumns = map[string]string{
	"folder":            "folder",
	"fileName":          "file_name",
	"mimeType":          "mime_type",
	"sizeInBytes":       "size_in_bytes",
	"created":           "created",
	"modified":          "modified",
	"dateTaken":         "date_taken",
	"dimensionWidth":    "dimension_width",
	"dimensionHeight":   "dimension_height",
	"locationLatitude":  "location_latitude",
	"locationLongitude": "location_longitude",
	"cameraMake":        "camera_make",
	"cameraModel":       "camera_model",
	"exposure":          "exposure",
	"aperture":          "aperture",
	"iso":               "iso",
	"focalLength":       "focal_length",
	"lens":              "lens",
	"videoDurationMs":   "video_duration_ms",
	"videoFramerate":    "video_framerate",
	"videoCodec":        "video_codec",
	"audioCodec":        "audio_codec",
	"rating":            "rating",
	"orientation":       "orientation",
}

// Plan is a compiled SQL WHERE fragment plus its positional arguments.
type Plan struct {
	Where string
	Args  []interface{}
}

// Compile lowers a filter tree to a SQL WHERE clause body (without the
// leading "WHERE"), per the rules of spec §4.6. A nil node compiles to
// an always-true plan.
func Compile(n Node) (Plan, error) {
	if n == nil {
		return Plan{Where: "1=1"}, nil
	}
	return compileNode(n)
}

func compileNode(n Node) (Plan, error) {
	switch v := n.(type) {
	case LogicalFilter:
		return compileLogical(v)
	case FilterCondition:
		return compileCondition(v)
	default:
		return Plan{}, fmt.Errorf("filter: unknown node type %T", n)
	}
}

func compileLogical(lf LogicalFilter) (Plan, error) {
	if len(lf.Conditions) == 0 {
		// empty branches short-circuit: AND of nothing is true, OR of
		// nothing is false.
		if lf.Operation == "or" {
			return Plan{Where: "1=0"}, nil
		}
		return Plan{Where: "1=1"}, nil
	}

	joiner := " AND "
	if lf.Operation == "or" {
		joiner = " OR "
	}

	var parts []string
	var args []interface{}
	for _, c := range lf.Conditions {
		p, err := compileNode(c)
		if err != nil {
			return Plan{}, err
		}
		parts = append(parts, p.Where)
		args = append(args, p.Args...)
	}

	return Plan{Where: "(" + strings.Join(parts, joiner) + ")", Args: args}, nil
}

func compileCondition(fc FilterCondition) (Plan, error) {
	var parts []string
	var args []interface{}

	for field, constraint := range fc.Fields {
		if constraint.IsFolderForm {
			p := compileFolder(constraint)
			parts = append(parts, p.Where)
			args = append(args, p.Args...)
			continue
		}

		col, ok := fieldColumns[field]
		if !ok {
			return Plan{}, fmt.Errorf("filter: unknown field %q", field)
		}

		p, err := compileFieldConstraint(col, constraint)
		if err != nil {
			return Plan{}, err
		}
		parts = append(parts, p.Where)
		args = append(args, p.Args...)
	}

	if len(parts) == 0 {
		return Plan{Where: "1=1"}, nil
	}

	return Plan{Where: "(" + strings.Join(parts, " AND ") + ")", Args: args}, nil
}

func compileFolder(c Constraint) Plan {
	folder := ""
	if c.Folder != nil {
		folder = *c.Folder
	}
	if !c.Recursive {
		return Plan{Where: "folder = ?", Args: []interface{}{folder}}
	}
	return Plan{Where: "(folder = ? OR folder LIKE ?)", Args: []interface{}{folder, folder + "%"}}
}

func compileFieldConstraint(col string, c Constraint) (Plan, error) {
	switch {
	case c.IsNull:
		return Plan{Where: col + " IS NULL"}, nil

	case c.HasRange:
		var parts []string
		var args []interface{}
		if c.Min != nil {
			parts = append(parts, col+" >= ?")
			args = append(args, c.Min)
		}
		if c.Max != nil {
			parts = append(parts, col+" <= ?")
			args = append(args, c.Max)
		}
		if len(parts) == 0 {
			return Plan{Where: "1=1"}, nil
		}
		return Plan{Where: "(" + strings.Join(parts, " AND ") + ")", Args: args}, nil

	case len(c.Set) > 0:
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Set)), ",")
		return Plan{Where: col + " IN (" + placeholders + ")", Args: c.Set}, nil

	case c.Includes != nil:
		return Plan{Where: col + " LIKE ? ESCAPE '\\'", Args: []interface{}{"%" + escapeLike(*c.Includes) + "%"}}, nil

	case c.StartsWith != nil:
		return Plan{Where: col + " LIKE ? ESCAPE '\\'", Args: []interface{}{escapeLike(*c.StartsWith) + "%"}}, nil

	case c.Glob != nil:
		// Conservative lowering: treat the glob's literal prefix (up to
		// the first wildcard) as a substring test, per spec §4.6 note
		// that a conservative implementation may lower glob to
		// substring with safe escaping. The in-memory matcher in
		// match.go performs the precise gobwas/glob evaluation.
		prefix := literalPrefix(*c.Glob)
		if prefix == "" {
			return Plan{Where: "1=1"}, nil
		}
		return Plan{Where: col + " LIKE ? ESCAPE '\\'", Args: []interface{}{"%" + escapeLike(prefix) + "%"}}, nil

	case c.Regex != nil:
		// SQLite has no native REGEXP without an extension; surface all
		// rows and let the in-memory matcher refine, mirroring how the
		// compiler is allowed to target "custom iterators" per §4.6.
		return Plan{Where: "1=1"}, nil

	case c.DirectChildOf != nil:
		prefix := *c.DirectChildOf
		return Plan{Where: "(" + col + " LIKE ? ESCAPE '\\' AND " + col + " NOT LIKE ? ESCAPE '\\')",
			Args: []interface{}{escapeLike(prefix) + "%", escapeLike(prefix) + "%/_%"}}, nil

	case c.RootOnly != nil && *c.RootOnly:
		return Plan{Where: col + " NOT LIKE '%/%'"}, nil

	case c.Exact != nil:
		return Plan{Where: col + " = ?", Args: []interface{}{c.Exact}}, nil

	default:
		return Plan{Where: "1=1"}, nil
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

// literalPrefix returns the portion of a glob pattern before its first
// wildcard character.
func literalPrefix(pattern string) string {
	for i, r := range pattern {
		if r == '*' || r == '?' || r == '[' {
			return pattern[:i]
		}
	}
	return pattern
}
