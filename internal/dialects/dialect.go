// Package dialects provides the per-backend SQL shape decisions used when
// rendering recursive hierarchy queries: identifier quoting, placeholders,
// recursive union mode and path encoding.
package dialects

import (
	"sort"
	"strings"
)

// Capabilities describes what a backend family can express natively.
type Capabilities struct {
	// RecursiveCTE reports WITH RECURSIVE support. Without it, closures are
	// rendered as a bounded self-join chain.
	RecursiveCTE bool
	// CorrelatedCTE reports whether a recursive CTE nested in a subquery may
	// reference columns of the outer query.
	CorrelatedCTE bool
	// ArrayPath reports that paths are stored in a native array column
	// instead of a delimited string.
	ArrayPath bool
}

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical family name (postgres, mysql, sqlite, mysql57).
	Name() string
	// QuoteIdentifier quotes an identifier. Dot-separated parts are quoted
	// individually and "*" is left as is.
	QuoteIdentifier(string) string
	Placeholder(int) string
	Capabilities() Capabilities

	// PathSeed returns the path value of an anchor row keyed by key.
	PathSeed(key string) string
	// PathAppend extends path with key at the leaf end.
	PathAppend(path, key string) string
	// PathPrepend extends path with key at the root end.
	PathPrepend(path, key string) string
	// PathContains returns a boolean-valued expression reporting whether key
	// already occurs in path.
	PathContains(path, key string) string
	// PathJoin builds a path value from a fixed list of key expressions.
	PathJoin(keys []string) string
	// DecodePath converts a scanned path value into its ordered keys.
	DecodePath(v interface{}) []string

	Bool(bool) string
	IsTrue(expr string) string
	IsFalse(expr string) string
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}

// Names returns all registered driver names in sorted order.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecursiveUnion picks the set operator joining the anchor and recursive
// clauses. Rows carrying depth or path bookkeeping are unique per route, so
// UNION ALL is safe. Without bookkeeping, UNION's de-duplication is what
// stops the recursion on cyclic data.
func RecursiveUnion(tracksRows bool) string {
	if tracksRows {
		return "UNION ALL"
	}
	return "UNION"
}

// quoteParts quotes every dot-separated part of s with the given quote rune.
func quoteParts(s string, quote string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = quote + strings.ReplaceAll(p, quote, quote+quote) + quote
	}
	return strings.Join(parts, ".")
}

// splitPath decodes a delimited string path.
func splitPath(v interface{}, sep string) []string {
	var s string
	switch p := v.(type) {
	case nil:
		return nil
	case string:
		s = p
	case []byte:
		s = string(p)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
