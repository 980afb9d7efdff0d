package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Record is the minimal accessor a caller's value must implement to be
// evaluated against a filter tree in memory. Field returns the value
// named by the filter's field key (e.g. "folder", "cameraMake") and
// whether it is present (false means null/absent).
type Record interface {
	Field(name string) (interface{}, bool)
}

// Match reports whether rec satisfies the filter tree. A nil node
// matches everything.
func Match(n Node, rec Record) (bool, error) {
	if n == nil {
		return true, nil
	}
	switch v := n.(type) {
	case LogicalFilter:
		return matchLogical(v, rec)
	case FilterCondition:
		return matchCondition(v, rec)
	default:
		return false, fmt.Errorf("filter: unknown node type %T", n)
	}
}

func matchLogical(lf LogicalFilter, rec Record) (bool, error) {
	if len(lf.Conditions) == 0 {
		return lf.Operation != "or", nil
	}
	if lf.Operation == "or" {
		for _, c := range lf.Conditions {
			ok, err := Match(c, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	for _, c := range lf.Conditions {
		ok, err := Match(c, rec)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(fc FilterCondition, rec Record) (bool, error) {
	for field, constraint := range fc.Fields {
		var ok bool
		var err error
		if constraint.IsFolderForm {
			folderVal, _ := rec.Field("folder")
			ok = matchFolder(constraint, folderVal)
		} else {
			val, present := rec.Field(field)
			ok, err = matchConstraint(constraint, val, present)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchFolder(c Constraint, val interface{}) bool {
	folder, _ := val.(string)
	want := ""
	if c.Folder != nil {
		want = *c.Folder
	}
	if !c.Recursive {
		return folder == want
	}
	return folder == want || strings.HasPrefix(folder, want)
}

func matchConstraint(c Constraint, val interface{}, present bool) (bool, error) {
	switch {
	case c.IsNull:
		return !present || val == nil, nil
	case !present || val == nil:
		return false, nil
	}

	switch {
	case c.HasRange:
		return inRange(c, val), nil

	case len(c.Set) > 0:
		for _, s := range c.Set {
			if valuesEqual(s, val) {
				return true, nil
			}
		}
		return false, nil

	case c.Includes != nil:
		s, _ := val.(string)
		return strings.Contains(s, *c.Includes), nil

	case c.StartsWith != nil:
		s, _ := val.(string)
		return strings.HasPrefix(s, *c.StartsWith), nil

	case c.Glob != nil:
		g, err := glob.Compile(*c.Glob, '/')
		if err != nil {
			return false, fmt.Errorf("filter: invalid glob %q: %w", *c.Glob, err)
		}
		s, _ := val.(string)
		return g.Match(s), nil

	case c.Regex != nil:
		re, err := regexp.Compile(*c.Regex)
		if err != nil {
			return false, fmt.Errorf("filter: invalid regex %q: %w", *c.Regex, err)
		}
		s, _ := val.(string)
		return re.MatchString(s), nil

	case c.DirectChildOf != nil:
		s, _ := val.(string)
		prefix := *c.DirectChildOf
		rest := strings.TrimPrefix(s, prefix)
		if rest == s {
			return false, nil
		}
		rest = strings.Trim(rest, "/")
		return rest != "" && !strings.Contains(rest, "/"), nil

	case c.RootOnly != nil && *c.RootOnly:
		s, _ := val.(string)
		return !strings.Contains(s, "/"), nil

	case c.Exact != nil:
		return valuesEqual(c.Exact, val), nil

	default:
		return true, nil
	}
}

func inRange(c Constraint, val interface{}) bool {
	f, ok := toFloat(val)
	if !ok {
		return false
	}
	if c.Min != nil {
		if min, ok := toFloat(c.Min); ok && f < min {
			return false
		}
	}
	if c.Max != nil {
		if max, ok := toFloat(c.Max); ok && f > max {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
