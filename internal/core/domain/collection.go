package domain

import (
	"errors"
	"strings"
	"time"
)

type Collection struct {
	ID        int64
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Field struct {
	CollectionID int64
	Slug         string
	Name         string
	Type         FieldType
	Position     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CollectionProperties are the caller-editable attributes of a collection. On update an
// empty value leaves the stored attribute unchanged.
type CollectionProperties struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (p CollectionProperties) Normalize() CollectionProperties {
	p.Slug = NormalizeSlug(p.Slug)
	p.Name = strings.TrimSpace(p.Name)
	return p
}

// ValidateForCreate requires both attributes to be present.
func (p CollectionProperties) ValidateForCreate() error {
	if err := ValidateCollectionSlug(p.Slug); err != nil {
		return err
	}
	if p.Name == "" {
		return errors.New("collection name is required")
	}
	return nil
}

func (p CollectionProperties) ValidateForUpdate() error {
	if p.Slug == "" {
		return nil
	}
	return ValidateCollectionSlug(p.Slug)
}

// FieldDefinition is a field as supplied by a caller, before the type is parsed.
type FieldDefinition struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Parse normalizes the slug, validates it and resolves the field type. An empty name is kept
// empty; see FieldSpec.
func (d FieldDefinition) Parse() (FieldSpec, error) {
	slug := NormalizeSlug(d.Slug)
	if err := ValidateFieldSlug(slug); err != nil {
		return FieldSpec{}, err
	}
	ft, err := ParseFieldType(d.Type)
	if err != nil {
		return FieldSpec{}, err
	}
	return FieldSpec{Slug: slug, Name: strings.TrimSpace(d.Name), Type: ft}, nil
}

// FieldSpec is a validated field definition, ready for the metadata store. An empty Name
// keeps the stored name of an existing field and defaults to the slug for a new one.
type FieldSpec struct {
	Slug string
	Name string
	Type FieldType
}

// NameOr returns the spec's name, or fallback when none was given.
func (s FieldSpec) NameOr(fallback string) string {
	if s.Name == "" {
		return fallback
	}
	return s.Name
}

// CollectionDetail is a collection together with its fields in column order.
type CollectionDetail struct {
	Collection Collection
	Fields     []Field
}
