package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TablePrefix          = "pcm__"
	IdentitySuffix       = "_id"
	rebuildSuffix        = "__rebuild"
	reservedSeparator    = "__"
	maxCollectionSlugLen = 48
	maxFieldSlugLen      = 63
)

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Identifier is a physical table or column name that passed slug validation. The zero
// value is not a usable identifier.
type Identifier struct {
	name string
}

func (i Identifier) String() string {
	return i.name
}

func (i Identifier) IsZero() bool {
	return i.name == ""
}

// Quote returns the identifier in double quotes, which both supported dialects accept.
func (i Identifier) Quote() string {
	return `"` + strings.ReplaceAll(i.name, `"`, `""`) + `"`
}

// NormalizeSlug trims surrounding whitespace and lower-cases raw.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ValidateCollectionSlug(slug string) error {
	if err := validateSlug("collection", slug, maxCollectionSlugLen); err != nil {
		return err
	}
	return nil
}

func ValidateFieldSlug(slug string) error {
	if err := validateSlug("field", slug, maxFieldSlugLen); err != nil {
		return err
	}
	if strings.HasSuffix(slug, IdentitySuffix) {
		return fmt.Errorf("%w: field slug %q uses the reserved suffix %q", ErrIdentifierCollision, slug, IdentitySuffix)
	}
	return nil
}

func validateSlug(kind, slug string, maxLen int) error {
	if slug == "" {
		return fmt.Errorf("%w: %s slug is empty", ErrIdentifierCollision, kind)
	}
	if len(slug) > maxLen {
		return fmt.Errorf("%w: %s slug %q exceeds %d characters", ErrIdentifierCollision, kind, slug, maxLen)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: %s slug %q must match %s", ErrIdentifierCollision, kind, slug, slugPattern)
	}
	if strings.Contains(slug, reservedSeparator) {
		return fmt.Errorf("%w: %s slug %q contains the reserved separator %q", ErrIdentifierCollision, kind, slug, reservedSeparator)
	}
	return nil
}

// TableIdentifier returns pcm__<slug>.
func TableIdentifier(collectionSlug string) (Identifier, error) {
	if err := ValidateCollectionSlug(collectionSlug); err != nil {
		return Identifier{}, err
	}
	return Identifier{name: TablePrefix + collectionSlug}, nil
}

// IdentityColumnIdentifier returns <slug>_id, the surrogate key column of a collection table.
func IdentityColumnIdentifier(collectionSlug string) (Identifier, error) {
	if err := ValidateCollectionSlug(collectionSlug); err != nil {
		return Identifier{}, err
	}
	return Identifier{name: collectionSlug + IdentitySuffix}, nil
}

// RebuildTableIdentifier names the scratch table used when a dialect has to copy a table to
// change a column type. Collection slugs cannot contain "__", so it never names a live table.
func RebuildTableIdentifier(collectionSlug string) (Identifier, error) {
	if err := ValidateCollectionSlug(collectionSlug); err != nil {
		return Identifier{}, err
	}
	return Identifier{name: TablePrefix + collectionSlug + rebuildSuffix}, nil
}

func ColumnIdentifier(fieldSlug string) (Identifier, error) {
	if err := ValidateFieldSlug(fieldSlug); err != nil {
		return Identifier{}, err
	}
	return Identifier{name: fieldSlug}, nil
}
