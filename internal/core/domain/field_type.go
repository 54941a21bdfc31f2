package domain

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of logical field types. Adding a type means adding a constant
// here, an entry in nativeTypes and a value in the pcm_field_type enum migration.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeVarchar FieldType = "varchar"
	FieldTypeInt     FieldType = "int"
	FieldTypeNumeric FieldType = "numeric"
)

var nativeTypes = map[FieldType]string{
	FieldTypeText:    "text",
	FieldTypeVarchar: "varchar",
	FieldTypeInt:     "integer",
	FieldTypeNumeric: "numeric",
}

// FieldTypes lists the enum values in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{FieldTypeText, FieldTypeVarchar, FieldTypeInt, FieldTypeNumeric}
}

func ParseFieldType(raw string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := nativeTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFieldType, raw)
	}
	return t, nil
}

func (t FieldType) Valid() bool {
	_, ok := nativeTypes[t]
	return ok
}

// NativeType is the column type used in DDL for t.
func (t FieldType) NativeType() string {
	return nativeTypes[t]
}

func (t FieldType) String() string {
	return string(t)
}
