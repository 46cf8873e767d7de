// Package util reads owner keys from hydrated entities by reflection.
package util

import (
	"errors"
	"reflect"
	"strings"
)

// dbTag splits a `db:"name,opt,..."` tag.
func dbTag(f reflect.StructField) (name string, pk bool, tagged bool) {
	tag, ok := f.Tag.Lookup("db")
	if !ok || tag == "" {
		return "", false, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if strings.TrimSpace(opt) == "pk" {
			pk = true
		}
	}
	return strings.TrimSpace(name), pk, true
}

// ColumnName maps a struct field to a column: the db tag name, else the
// lowercased field name. Unexported fields and db:"-" report false.
func ColumnName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	name, _, _ := dbTag(f)
	switch name {
	case "-":
		return "", false
	case "":
		return strings.ToLower(f.Name), true
	}
	return name, true
}

// FieldByColumn finds the field of struct v mapped to column, looking
// through embedded structs.
func FieldByColumn(v reflect.Value, column string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if fv, ok := FieldByColumn(v.Field(i), column); ok {
				return fv, true
			}
			continue
		}
		if name, ok := ColumnName(f); ok && strings.EqualFold(name, column) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// PrimaryKey returns the field tagged pk, else the field named ID or Id.
func PrimaryKey(v reflect.Value) (reflect.Value, error) {
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.New("primary key: not a struct")
	}
	t := v.Type()
	byName := -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if _, pk, _ := dbTag(f); pk {
			return v.Field(i), nil
		}
		if f.Name == "ID" || (f.Name == "Id" && byName < 0) {
			byName = i
		}
	}
	if byName < 0 {
		return reflect.Value{}, errors.New("primary key: no pk tag or ID field")
	}
	return v.Field(byName), nil
}

// KeyValue extracts an owner's key. Structs are read through the field
// mapped to column, falling back to the primary key; anything else is the
// key itself. It reports false for owners without a persisted key.
func KeyValue(owner interface{}, column string) (interface{}, bool) {
	v := reflect.ValueOf(owner)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch {
	case !v.IsValid():
		return nil, false
	case v.Kind() == reflect.Struct:
		f, ok := FieldByColumn(v, column)
		if !ok {
			var err error
			if f, err = PrimaryKey(v); err != nil {
				return nil, false
			}
		}
		return KeyValue(f.Interface(), column)
	case IsZeroKey(v):
		return nil, false
	}
	return v.Interface(), true
}

// IsZeroKey reports whether v is unset: invalid, nil, or the zero value
// behind any number of pointers.
func IsZeroKey(v reflect.Value) bool {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return !v.IsValid() || v.IsZero()
}
