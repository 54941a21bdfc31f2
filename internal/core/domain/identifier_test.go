package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCollectionSlug(t *testing.T) {
	tests := []struct {
		slug string
		ok   bool
	}{
		{slug: "articles", ok: true},
		{slug: "blog_posts", ok: true},
		{slug: "a1", ok: true},
		{slug: "", ok: false},
		{slug: "1articles", ok: false},
		{slug: "Articles", ok: false},
		{slug: "blog-posts", ok: false},
		{slug: "blog__posts", ok: false},
		{slug: `x"; DROP TABLE pcm_collection; --`, ok: false},
		{slug: strings.Repeat("a", maxCollectionSlugLen+1), ok: false},
	}

	for _, tt := range tests {
		err := ValidateCollectionSlug(tt.slug)
		if tt.ok && err != nil {
			t.Fatalf("slug %q: unexpected error %v", tt.slug, err)
		}
		if !tt.ok && !errors.Is(err, ErrIdentifierCollision) {
			t.Fatalf("slug %q: expected identifier collision, got %v", tt.slug, err)
		}
	}
}

func TestValidateFieldSlugRejectsIdentitySuffix(t *testing.T) {
	if err := ValidateFieldSlug("author_id"); !errors.Is(err, ErrIdentifierCollision) {
		t.Fatalf("expected identifier collision, got %v", err)
	}
	if err := ValidateFieldSlug("identity"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPhysicalIdentifiers(t *testing.T) {
	table, err := TableIdentifier("articles")
	if err != nil {
		t.Fatalf("table identifier: %v", err)
	}
	if table.String() != "pcm__articles" || table.Quote() != `"pcm__articles"` {
		t.Fatalf("unexpected table identifier: %s %s", table, table.Quote())
	}

	identity, err := IdentityColumnIdentifier("articles")
	if err != nil {
		t.Fatalf("identity identifier: %v", err)
	}
	if identity.String() != "articles_id" {
		t.Fatalf("unexpected identity column: %s", identity)
	}

	rebuild, err := RebuildTableIdentifier("articles")
	if err != nil {
		t.Fatalf("rebuild identifier: %v", err)
	}
	if rebuild.String() != "pcm__articles__rebuild" {
		t.Fatalf("unexpected rebuild table: %s", rebuild)
	}

	if _, err := ColumnIdentifier("bad name"); !errors.Is(err, ErrIdentifierCollision) {
		t.Fatalf("expected identifier collision, got %v", err)
	}
}

func TestNormalizeSlug(t *testing.T) {
	if got := NormalizeSlug("  Articles "); got != "articles" {
		t.Fatalf("unexpected normalized slug: %q", got)
	}
}

func TestFieldDefinitionParse(t *testing.T) {
	spec, err := FieldDefinition{Slug: " Title ", Type: "VARCHAR"}.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.Slug != "title" || spec.Type != FieldTypeVarchar || spec.Name != "" {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	if got := spec.NameOr("Title"); got != "Title" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	named, err := FieldDefinition{Slug: "title", Name: " Headline ", Type: "text"}.Parse()
	if err != nil || named.NameOr("Title") != "Headline" {
		t.Fatalf("unexpected named spec: %+v, %v", named, err)
	}

	_, err = FieldDefinition{Slug: "title", Type: "boolean"}.Parse()
	if !errors.Is(err, ErrInvalidFieldType) {
		t.Fatalf("expected invalid field type, got %v", err)
	}
}
