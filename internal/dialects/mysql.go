package dialects

import "strings"

// MySQLDialect implements MySQL 8 / MariaDB 10.2+ SQL dialect.
// Paths are comma-separated strings, so keys must not contain commas.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
	RegisterDialect("mariadb", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return quoteParts(s, "`")
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// Capabilities reports recursive CTEs without outer references inside them.
func (d *MySQLDialect) Capabilities() Capabilities {
	return Capabilities{RecursiveCTE: true}
}

// PathSeed widens the anchor column so the recursive rows fit into it.
func (d *MySQLDialect) PathSeed(key string) string {
	return "CAST(" + key + " AS CHAR(65535))"
}

// PathAppend adds key to the end of a comma-separated path.
func (d *MySQLDialect) PathAppend(path, key string) string {
	return "CONCAT(" + path + ", ',', " + key + ")"
}

// PathPrepend adds key to the front of a comma-separated path.
func (d *MySQLDialect) PathPrepend(path, key string) string {
	return "CONCAT(" + key + ", ',', " + path + ")"
}

// PathContains tests path membership with FIND_IN_SET.
func (d *MySQLDialect) PathContains(path, key string) string {
	return "FIND_IN_SET(" + key + ", " + path + ") > 0"
}

// PathJoin builds a comma-separated path from key expressions.
func (d *MySQLDialect) PathJoin(keys []string) string {
	return "CONCAT_WS(',', " + strings.Join(keys, ", ") + ")"
}

// DecodePath splits a scanned path on commas.
func (d *MySQLDialect) DecodePath(v interface{}) []string {
	return splitPath(v, ",")
}

// Bool renders b as 1 or 0.
func (d *MySQLDialect) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// IsTrue compares a boolean expression with 1.
func (d *MySQLDialect) IsTrue(expr string) string { return expr + " = 1" }

// IsFalse compares a boolean expression with 0.
func (d *MySQLDialect) IsFalse(expr string) string { return expr + " = 0" }

// LegacyMySQLDialect covers MySQL 5.7 and older, which lack recursive CTEs.
// Closures are rendered as a self-join chain bounded by a hop count.
type LegacyMySQLDialect struct {
	MySQLDialect
}

func init() {
	RegisterDialect("mysql57", &LegacyMySQLDialect{})
}

// Name returns "mysql57".
func (d *LegacyMySQLDialect) Name() string { return "mysql57" }

// Capabilities reports no recursive query support.
func (d *LegacyMySQLDialect) Capabilities() Capabilities {
	return Capabilities{}
}
