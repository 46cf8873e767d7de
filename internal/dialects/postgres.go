package dialects

import (
	"fmt"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
// Paths are native arrays of the key type.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return quoteParts(s, `"`)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Capabilities reports full recursive support.
func (d *PostgresDialect) Capabilities() Capabilities {
	return Capabilities{RecursiveCTE: true, CorrelatedCTE: true, ArrayPath: true}
}

// PathSeed starts a one-element array path.
func (d *PostgresDialect) PathSeed(key string) string {
	return "ARRAY[" + key + "]"
}

// PathAppend appends key to an array path.
func (d *PostgresDialect) PathAppend(path, key string) string {
	return path + " || " + key
}

// PathPrepend prepends key to an array path.
func (d *PostgresDialect) PathPrepend(path, key string) string {
	return key + " || " + path
}

// PathContains tests array membership with ANY.
func (d *PostgresDialect) PathContains(path, key string) string {
	return key + " = ANY(" + path + ")"
}

// PathJoin builds an array literal from key expressions.
func (d *PostgresDialect) PathJoin(keys []string) string {
	return "ARRAY[" + strings.Join(keys, ", ") + "]"
}

// DecodePath parses the text form of an array ("{1,2,3}").
func (d *PostgresDialect) DecodePath(v interface{}) []string {
	var s string
	switch p := v.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	case []string:
		return p
	default:
		return nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if s == "" {
		return nil
	}
	keys := strings.Split(s, ",")
	for i, k := range keys {
		keys[i] = strings.Trim(k, `"`)
	}
	return keys
}

// Bool renders b as a boolean literal.
func (d *PostgresDialect) Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// IsTrue returns the boolean expression unchanged.
func (d *PostgresDialect) IsTrue(expr string) string { return expr }

// IsFalse negates a boolean expression.
func (d *PostgresDialect) IsFalse(expr string) string { return "NOT " + expr }
