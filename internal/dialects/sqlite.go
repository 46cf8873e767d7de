package dialects

import "strings"

// SQLiteDialect implements SQLite-specific SQL dialect.
// Paths are dot-separated strings, so keys must not contain dots.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteParts(s, `"`)
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// Capabilities reports recursive CTEs. Outer references from inside a
// recursive CTE are not relied upon.
func (d *SQLiteDialect) Capabilities() Capabilities {
	return Capabilities{RecursiveCTE: true}
}

// PathSeed casts the anchor key to text.
func (d *SQLiteDialect) PathSeed(key string) string {
	return "CAST(" + key + " AS TEXT)"
}

// PathAppend concatenates key after path with a dot.
func (d *SQLiteDialect) PathAppend(path, key string) string {
	return path + " || '.' || " + key
}

// PathPrepend concatenates key before path with a dot.
func (d *SQLiteDialect) PathPrepend(path, key string) string {
	return key + " || '.' || " + path
}

// PathContains pads both sides with the separator so "1" does not match "11".
func (d *SQLiteDialect) PathContains(path, key string) string {
	return "instr('.' || " + path + " || '.', '.' || " + key + " || '.') > 0"
}

// PathJoin concatenates key expressions with dots.
func (d *SQLiteDialect) PathJoin(keys []string) string {
	return strings.Join(keys, " || '.' || ")
}

// DecodePath splits a scanned path on dots.
func (d *SQLiteDialect) DecodePath(v interface{}) []string {
	return splitPath(v, ".")
}

// Bool renders b as 1 or 0.
func (d *SQLiteDialect) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// IsTrue compares a boolean expression with 1.
func (d *SQLiteDialect) IsTrue(expr string) string { return expr + " = 1" }

// IsFalse compares a boolean expression with 0.
func (d *SQLiteDialect) IsFalse(expr string) string { return expr + " = 0" }
