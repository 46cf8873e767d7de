package core

import (
	"bytes"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"

	"github.com/coregx/adjacency/internal/dialects"
)

// Row is one related row. Columns holds the table's columns as returned by
// the driver; the recursion bookkeeping is exposed separately.
type Row struct {
	Columns map[string]interface{}
	// Depth is the signed distance from the owner. Zero without depth
	// tracking and for the owner itself.
	Depth int
	// Path holds the keys from the anchor to this row, root first.
	Path []string
	// Cycle is set on the row that closed a cycle.
	Cycle bool

	group string
}

// Get returns the value of column.
func (r Row) Get(column string) interface{} {
	return r.Columns[column]
}

// Scan copies the row's columns into the struct dest points to.
func (r Row) Scan(dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scan: want pointer to struct, got %T", dest)
	}
	fields, err := fieldsOf(v.Elem().Type())
	if err != nil {
		return err
	}
	return fields.fill(v.Elem(), r.Columns)
}

// readRows drains rows. The internal columns become Row metadata.
func readRows(rows *sql.Rows, d dialects.Dialect) ([]Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []Row{}
	vals := make([]interface{}, len(names))
	ptrs := make([]interface{}, len(names))
	for rows.Next() {
		for i := range vals {
			vals[i] = nil
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := Row{Columns: make(map[string]interface{}, len(names))}
		for i, name := range names {
			v := vals[i]
			switch strings.ToLower(name) {
			case ColumnDepth:
				row.Depth = toInt(v)
			case ColumnPath:
				row.Path = d.DecodePath(v)
			case ColumnCycle:
				row.Cycle = toBool(v)
			case ColumnGroup:
				row.group = keyString(v)
			case ColumnRank:
			default:
				row.Columns[name] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ScanRows hydrates dest, a pointer to a slice of structs or struct
// pointers. Fields match columns by db tag, else by lowercased name.
func ScanRows(rows []Row, dest interface{}) error {
	pv := reflect.ValueOf(dest)
	if pv.Kind() != reflect.Ptr || pv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scan: want pointer to slice, got %T", dest)
	}
	slice := pv.Elem()

	elem := slice.Type().Elem()
	byRef := elem.Kind() == reflect.Ptr
	if byRef {
		elem = elem.Elem()
	}
	fields, err := fieldsOf(elem)
	if err != nil {
		return err
	}

	out := reflect.MakeSlice(slice.Type(), len(rows), len(rows))
	for i, row := range rows {
		item := reflect.New(elem)
		if err := fields.fill(item.Elem(), row.Columns); err != nil {
			return err
		}
		if byRef {
			out.Index(i).Set(item)
		} else {
			out.Index(i).Set(item.Elem())
		}
	}
	slice.Set(out)
	return nil
}

// columns maps struct fields to columns: the db tag, else the lowercased
// field name. Embedded structs are flattened and the shallowest field wins.
var columns = reflectx.NewMapperTagFunc("db", strings.ToLower, strings.ToLower)

type fieldMap struct{ *reflectx.StructMap }

func fieldsOf(t reflect.Type) (fieldMap, error) {
	if t.Kind() != reflect.Struct {
		return fieldMap{}, fmt.Errorf("scan: want struct element, got %s", t.Kind())
	}
	return fieldMap{columns.TypeMap(t)}, nil
}

func (m fieldMap) fill(dest reflect.Value, values map[string]interface{}) error {
	for col, value := range values {
		fi := m.GetByPath(strings.ToLower(col))
		if fi == nil || fi.Embedded {
			continue
		}
		if err := assign(reflectx.FieldByIndexes(dest, fi.Index), value); err != nil {
			return fmt.Errorf("scan column %s: %w", col, err)
		}
	}
	return nil
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// assign stores a driver value in field, converting where drivers disagree
// on representation.
func assign(field reflect.Value, value interface{}) error {
	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(value)
	}

	switch {
	case value == nil:
		field.SetZero()
		return nil
	case field.Kind() == reflect.Ptr:
		p := reflect.New(field.Type().Elem())
		if err := assign(p.Elem(), value); err != nil {
			return err
		}
		field.Set(p)
		return nil
	}

	if b, ok := value.([]byte); ok {
		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8 {
			field.SetBytes(bytes.Clone(b))
			return nil
		}
		value = string(b)
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return nil
	}
	if s, ok := value.(string); ok {
		return assignString(field, s)
	}
	if field.Kind() == reflect.Bool {
		field.SetBool(toBool(value))
		return nil
	}
	if field.Kind() == reflect.String {
		field.SetString(keyString(value))
		return nil
	}
	if v.Type().ConvertibleTo(field.Type()) {
		field.Set(v.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// assignString parses textual driver output, which sqlite and the mysql
// text protocol return for most column types.
func assignString(field reflect.Value, s string) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Struct:
		if field.Type() != timeType {
			return fmt.Errorf("cannot assign string to %s", field.Type())
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
	default:
		return fmt.Errorf("cannot assign string to %s", field.Type())
	}
	return nil
}
