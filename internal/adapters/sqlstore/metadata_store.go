package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

type collectionModel struct {
	ID        int64     `gorm:"column:collection_id;primaryKey;autoIncrement"`
	Slug      string    `gorm:"column:collection_slug;not null"`
	Name      string    `gorm:"column:collection_name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (collectionModel) TableName() string {
	return "pcm_collection"
}

type fieldModel struct {
	CollectionID int64     `gorm:"column:collection_id;primaryKey;autoIncrement:false"`
	Slug         string    `gorm:"column:field_slug;primaryKey"`
	Name         string    `gorm:"column:field_name;not null"`
	Type         string    `gorm:"column:field_type;not null"`
	Position     int       `gorm:"column:position;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (fieldModel) TableName() string {
	return "pcm_collection_field"
}

// metadataStore is bound to one transaction. When lock is set, collection reads take a row
// lock so that concurrent writers to the same collection queue up.
type metadataStore struct {
	tx   *gorm.DB
	lock bool
}

var _ ports.MetadataStore = (*metadataStore)(nil)

func (s *metadataStore) CreateCollection(ctx context.Context, slug, name string) (domain.SchemaChange, error) {
	if err := domain.ValidateCollectionSlug(slug); err != nil {
		return domain.SchemaChange{}, err
	}
	now := time.Now().UTC()
	model := collectionModel{Slug: slug, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.tx.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.SchemaChange{}, fmt.Errorf("insert collection %s: %w", slug, classifyError(err))
	}
	return domain.SchemaChange{Kind: domain.CollectionCreated, Collection: collectionToDomain(model)}, nil
}

func (s *metadataStore) RenameCollection(ctx context.Context, id int64, newSlug string) (domain.SchemaChange, error) {
	if err := domain.ValidateCollectionSlug(newSlug); err != nil {
		return domain.SchemaChange{}, err
	}
	return s.UpdateCollection(ctx, id, domain.CollectionProperties{Slug: newSlug})
}

func (s *metadataStore) UpdateCollection(ctx context.Context, id int64, props domain.CollectionProperties) (domain.SchemaChange, error) {
	prev, err := s.loadCollection(ctx, id)
	if err != nil {
		return domain.SchemaChange{}, err
	}

	next := prev
	updates := map[string]any{}
	if props.Slug != "" && props.Slug != prev.Slug {
		if err := domain.ValidateCollectionSlug(props.Slug); err != nil {
			return domain.SchemaChange{}, err
		}
		next.Slug = props.Slug
		updates["collection_slug"] = props.Slug
	}
	if props.Name != "" && props.Name != prev.Name {
		next.Name = props.Name
		updates["collection_name"] = props.Name
	}

	if len(updates) > 0 {
		next.UpdatedAt = time.Now().UTC()
		updates["updated_at"] = next.UpdatedAt
		err := s.tx.WithContext(ctx).Model(&collectionModel{}).
			Where("collection_id = ?", id).
			Updates(updates).Error
		if err != nil {
			return domain.SchemaChange{}, fmt.Errorf("update collection %d: %w", id, classifyError(err))
		}
	}

	before := collectionToDomain(prev)
	return domain.SchemaChange{Kind: domain.CollectionUpdated, Collection: collectionToDomain(next), PreviousCollection: &before}, nil
}

func (s *metadataStore) DeleteCollection(ctx context.Context, id int64) (domain.SchemaChange, error) {
	model, err := s.loadCollection(ctx, id)
	if err != nil {
		return domain.SchemaChange{}, err
	}
	fields, err := s.ListFields(ctx, id)
	if err != nil {
		return domain.SchemaChange{}, err
	}

	db := s.tx.WithContext(ctx)
	if err := db.Where("collection_id = ?", id).Delete(&fieldModel{}).Error; err != nil {
		return domain.SchemaChange{}, fmt.Errorf("delete fields of collection %d: %w", id, err)
	}
	if err := db.Where("collection_id = ?", id).Delete(&collectionModel{}).Error; err != nil {
		return domain.SchemaChange{}, fmt.Errorf("delete collection %d: %w", id, err)
	}

	return domain.SchemaChange{Kind: domain.CollectionDeleted, Collection: collectionToDomain(model), CascadedFields: fields}, nil
}

// UpsertField inserts the field or, when (collection, slug) already exists, updates its name
// and type. A new field is placed after every existing one.
func (s *metadataStore) UpsertField(ctx context.Context, collectionID int64, spec domain.FieldSpec) (domain.SchemaChange, error) {
	if err := domain.ValidateFieldSlug(spec.Slug); err != nil {
		return domain.SchemaChange{}, err
	}
	if !spec.Type.Valid() {
		return domain.SchemaChange{}, fmt.Errorf("%w: %q", domain.ErrInvalidFieldType, spec.Type)
	}
	collection, err := s.loadCollection(ctx, collectionID)
	if err != nil {
		return domain.SchemaChange{}, err
	}

	db := s.tx.WithContext(ctx)
	prev, found, err := s.findField(ctx, collectionID, spec.Slug)
	if err != nil {
		return domain.SchemaChange{}, err
	}

	now := time.Now().UTC()
	model := fieldModel{
		CollectionID: collectionID,
		Slug:         spec.Slug,
		Name:         spec.NameOr(spec.Slug),
		Type:         spec.Type.String(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if found {
		model.Name = spec.NameOr(prev.Name)
		model.Position = prev.Position
		model.CreatedAt = prev.CreatedAt
	} else {
		var maxPos int
		err := db.Model(&fieldModel{}).
			Where("collection_id = ?", collectionID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPos).Error
		if err != nil {
			return domain.SchemaChange{}, fmt.Errorf("next field position: %w", err)
		}
		model.Position = maxPos + 1
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_id"}, {Name: "field_slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"field_name", "field_type", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return domain.SchemaChange{}, fmt.Errorf("upsert field %s: %w", spec.Slug, classifyError(err))
	}

	change := domain.SchemaChange{Collection: collectionToDomain(collection), Field: fieldToDomain(model)}
	if found {
		before := fieldToDomain(prev)
		change.Kind = domain.FieldUpdated
		change.PreviousField = &before
	} else {
		change.Kind = domain.FieldAdded
	}
	return change, nil
}

func (s *metadataStore) RenameField(ctx context.Context, collectionID int64, oldSlug, newSlug string) (domain.SchemaChange, error) {
	if err := domain.ValidateFieldSlug(newSlug); err != nil {
		return domain.SchemaChange{}, err
	}
	collection, err := s.loadCollection(ctx, collectionID)
	if err != nil {
		return domain.SchemaChange{}, err
	}
	prev, found, err := s.findField(ctx, collectionID, oldSlug)
	if err != nil {
		return domain.SchemaChange{}, err
	}
	if !found {
		return domain.SchemaChange{}, fmt.Errorf("%w: %s.%s", domain.ErrUnknownField, collection.Slug, oldSlug)
	}

	next := prev
	if newSlug != oldSlug {
		next.Slug = newSlug
		next.UpdatedAt = time.Now().UTC()
		err := s.tx.WithContext(ctx).Model(&fieldModel{}).
			Where("collection_id = ? AND field_slug = ?", collectionID, oldSlug).
			Updates(map[string]any{"field_slug": newSlug, "updated_at": next.UpdatedAt}).Error
		if err != nil {
			return domain.SchemaChange{}, fmt.Errorf("rename field %s.%s: %w", collection.Slug, oldSlug, classifyError(err))
		}
	}

	before := fieldToDomain(prev)
	return domain.SchemaChange{
		Kind:          domain.FieldRenamed,
		Collection:    collectionToDomain(collection),
		Field:         fieldToDomain(next),
		PreviousField: &before,
	}, nil
}

func (s *metadataStore) DeleteField(ctx context.Context, collectionID int64, slug string) (domain.SchemaChange, error) {
	collection, err := s.loadCollection(ctx, collectionID)
	if err != nil {
		return domain.SchemaChange{}, err
	}
	model, found, err := s.findField(ctx, collectionID, slug)
	if err != nil {
		return domain.SchemaChange{}, err
	}
	if !found {
		return domain.SchemaChange{}, fmt.Errorf("%w: %s.%s", domain.ErrUnknownField, collection.Slug, slug)
	}

	err = s.tx.WithContext(ctx).
		Where("collection_id = ? AND field_slug = ?", collectionID, slug).
		Delete(&fieldModel{}).Error
	if err != nil {
		return domain.SchemaChange{}, fmt.Errorf("delete field %s.%s: %w", collection.Slug, slug, err)
	}
	return domain.SchemaChange{Kind: domain.FieldDeleted, Collection: collectionToDomain(collection), Field: fieldToDomain(model)}, nil
}

func (s *metadataStore) GetCollection(ctx context.Context, id int64) (domain.Collection, error) {
	model, err := s.loadCollection(ctx, id)
	if err != nil {
		return domain.Collection{}, err
	}
	return collectionToDomain(model), nil
}

func (s *metadataStore) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	var rows []collectionModel
	if err := s.tx.WithContext(ctx).Order("collection_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]domain.Collection, 0, len(rows))
	for _, row := range rows {
		out = append(out, collectionToDomain(row))
	}
	return out, nil
}

// ListFields returns the fields of a collection in column order.
func (s *metadataStore) ListFields(ctx context.Context, collectionID int64) ([]domain.Field, error) {
	var rows []fieldModel
	err := s.tx.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("position ASC, field_slug ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list fields of collection %d: %w", collectionID, err)
	}
	out := make([]domain.Field, 0, len(rows))
	for _, row := range rows {
		out = append(out, fieldToDomain(row))
	}
	return out, nil
}

func (s *metadataStore) loadCollection(ctx context.Context, id int64) (collectionModel, error) {
	var model collectionModel
	query := s.tx.WithContext(ctx)
	if s.lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("collection_id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return collectionModel{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, id)
		}
		return collectionModel{}, fmt.Errorf("load collection %d: %w", id, err)
	}
	return model, nil
}

func (s *metadataStore) findField(ctx context.Context, collectionID int64, slug string) (fieldModel, bool, error) {
	var model fieldModel
	err := s.tx.WithContext(ctx).
		Where("collection_id = ? AND field_slug = ?", collectionID, slug).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fieldModel{}, false, nil
		}
		return fieldModel{}, false, fmt.Errorf("load field %d.%s: %w", collectionID, slug, err)
	}
	return model, true, nil
}

func collectionToDomain(model collectionModel) domain.Collection {
	return domain.Collection{
		ID:        model.ID,
		Slug:      model.Slug,
		Name:      model.Name,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func fieldToDomain(model fieldModel) domain.Field {
	return domain.Field{
		CollectionID: model.CollectionID,
		Slug:         model.Slug,
		Name:         model.Name,
		Type:         domain.FieldType(model.Type),
		Position:     model.Position,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
