package core

import (
	"fmt"
	"strconv"
)

// Internal columns carried through the recursion. They are stripped from
// Row.Columns and exposed as Row metadata instead.
const (
	ColumnDepth = "adjacency_depth"
	ColumnPath  = "adjacency_path"
	ColumnCycle = "adjacency_is_cycle"
	ColumnGroup = "adjacency_group"
	ColumnRank  = "adjacency_rank"
)

func isInternalColumn(name string) bool {
	switch name {
	case ColumnDepth, ColumnPath, ColumnCycle, ColumnGroup, ColumnRank:
		return true
	}
	return false
}

// PathTracking selects the per-row bookkeeping computed during recursion.
type PathTracking int

const (
	// TrackPath records depth, the visited key path and a cycle flag.
	TrackPath PathTracking = iota
	// TrackDepth records depth only. Cycles are not detected, so a max
	// depth is required.
	TrackDepth
	// TrackNone records nothing. Recursion relies on UNION de-duplication
	// to terminate, so max depth and strict cycle handling are unavailable.
	TrackNone
)

func (t PathTracking) String() string {
	switch t {
	case TrackPath:
		return "path"
	case TrackDepth:
		return "depth"
	case TrackNone:
		return "none"
	}
	return "PathTracking(" + strconv.Itoa(int(t)) + ")"
}

// ParsePathTracking parses "path", "depth" or "none".
func ParsePathTracking(s string) (PathTracking, error) {
	switch s {
	case "", "path":
		return TrackPath, nil
	case "depth":
		return TrackDepth, nil
	case "none":
		return TrackNone, nil
	}
	return TrackPath, configErrorf("unknown path tracking mode %q", s)
}

func (t PathTracking) tracksDepth() bool { return t != TrackNone }

func (t PathTracking) tracksPath() bool { return t == TrackPath }

// CyclePolicy decides what happens when traversal reaches a key that is
// already on its own path.
type CyclePolicy int

const (
	// CycleTolerate emits the revisiting row once and stops expanding it.
	CycleTolerate CyclePolicy = iota
	// CycleStrict fails the relation with ErrCycleDetected.
	CycleStrict
)

func (p CyclePolicy) String() string {
	if p == CycleStrict {
		return "strict"
	}
	return "tolerate"
}

// ParseCyclePolicy parses "tolerate" or "strict".
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch s {
	case "", "tolerate":
		return CycleTolerate, nil
	case "strict":
		return CycleStrict, nil
	}
	return CycleTolerate, configErrorf("unknown cycle policy %q", s)
}

// PathState is the recursion bookkeeping of one returned row.
type PathState struct {
	// Keys are ordered root to self for ancestors and self to leaf for
	// descendants, starting at the anchor.
	Keys []string
	// Depth is 0 at the anchor, positive below it and negative above it.
	Depth int
	// Cycle is set when the row's key already occurred on its path.
	Cycle bool
}

// Contains reports whether key occurs on the path.
func (p PathState) Contains(key string) bool {
	for _, k := range p.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Step returns the state of a row reached from p through one edge. The key
// is appended for descendants and prepended for ancestors, mirroring the
// SQL rendering.
func (p PathState) Step(key string, dir Direction) PathState {
	next := PathState{
		Keys:  make([]string, 0, len(p.Keys)+1),
		Cycle: p.Contains(key),
	}
	if dir == Ancestors {
		next.Keys = append(append(next.Keys, key), p.Keys...)
		next.Depth = p.Depth - 1
	} else {
		next.Keys = append(append(next.Keys, p.Keys...), key)
		next.Depth = p.Depth + 1
	}
	return next
}

// keyString normalizes scanned and caller-supplied keys so they can be
// compared across driver types.
func keyString(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case []byte:
		i, _ := strconv.Atoi(string(n))
		return i
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	case string:
		return b == "t" || b == "true" || toInt(b) != 0
	}
	return toInt(v) != 0
}
