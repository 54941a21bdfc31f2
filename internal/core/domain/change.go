package domain

type ChangeKind string

const (
	CollectionCreated ChangeKind = "collection.created"
	CollectionUpdated ChangeKind = "collection.updated"
	CollectionDeleted ChangeKind = "collection.deleted"
	FieldAdded        ChangeKind = "field.added"
	FieldUpdated      ChangeKind = "field.updated"
	FieldRenamed      ChangeKind = "field.renamed"
	FieldDeleted      ChangeKind = "field.deleted"
)

// SchemaChange describes one metadata write. Collection is the owning collection as it is
// after the write (before it, for CollectionDeleted). For field changes Field holds the new
// row and PreviousField the old one when there was one.
type SchemaChange struct {
	Kind               ChangeKind
	Collection         Collection
	PreviousCollection *Collection
	Field              Field
	PreviousField      *Field
	// CascadedFields are the field rows removed together with a deleted collection.
	CascadedFields []Field
}

func (c SchemaChange) SlugChanged() bool {
	return c.PreviousCollection != nil && c.PreviousCollection.Slug != c.Collection.Slug
}

func (c SchemaChange) TypeChanged() bool {
	return c.PreviousField != nil && c.PreviousField.Type != c.Field.Type
}
