package ports

import (
	"context"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

// MetadataStore reads and writes collection and field definitions. Implementations are
// bound to one transaction and never touch physical schema.
type MetadataStore interface {
	CreateCollection(ctx context.Context, slug, name string) (domain.SchemaChange, error)
	RenameCollection(ctx context.Context, id int64, newSlug string) (domain.SchemaChange, error)
	UpdateCollection(ctx context.Context, id int64, props domain.CollectionProperties) (domain.SchemaChange, error)
	DeleteCollection(ctx context.Context, id int64) (domain.SchemaChange, error)

	UpsertField(ctx context.Context, collectionID int64, field domain.FieldSpec) (domain.SchemaChange, error)
	RenameField(ctx context.Context, collectionID int64, oldSlug, newSlug string) (domain.SchemaChange, error)
	DeleteField(ctx context.Context, collectionID int64, slug string) (domain.SchemaChange, error)

	GetCollection(ctx context.Context, id int64) (domain.Collection, error)
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	ListFields(ctx context.Context, collectionID int64) ([]domain.Field, error)
}
