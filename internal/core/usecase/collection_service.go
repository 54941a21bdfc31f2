package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

// CollectionService runs compound collection mutations. Each call is one transaction: the
// metadata writes, the DDL derived from them and the outbox event commit together or not at
// all.
type CollectionService struct {
	tx         ports.Transactor
	reconciler *SchemaReconciler
	logger     *slog.Logger
}

type CollectionServiceOption func(*CollectionService)

func WithLogger(logger *slog.Logger) CollectionServiceOption {
	return func(s *CollectionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCollectionService(tx ports.Transactor, reconciler *SchemaReconciler, opts ...CollectionServiceOption) *CollectionService {
	s := &CollectionService{tx: tx, reconciler: reconciler, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.reconciler == nil {
		s.reconciler = NewSchemaReconciler(s.logger)
	}
	return s
}

// CreateCollection creates a collection and its table, then adds fields in the given order.
// Only the collection is returned; use GetCollection for the field list.
func (s *CollectionService) CreateCollection(ctx context.Context, props domain.CollectionProperties, fields []domain.FieldDefinition, meta domain.MutationMetadata) (domain.Collection, error) {
	props = props.Normalize()
	if err := props.ValidateForCreate(); err != nil {
		return domain.Collection{}, err
	}
	specs, err := parseFieldDefinitions(fields)
	if err != nil {
		return domain.Collection{}, err
	}
	meta = meta.Normalize()

	var created domain.Collection
	err = s.tx.WriteTX(ctx, func(tx ports.SchemaTx) error {
		change, err := tx.Metadata().CreateCollection(ctx, props.Slug, props.Name)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return err
		}
		created = change.Collection

		if err := s.upsertFields(ctx, tx, created.ID, specs); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventCollectionCreated, created, meta)
	})
	if err != nil {
		return domain.Collection{}, domain.Aborted("create collection", err)
	}

	s.logger.InfoContext(ctx, "collection created", "collection_id", created.ID, "slug", created.Slug, "fields", len(specs), "actor", meta.Actor)
	return created, nil
}

// UpdateCollection applies new properties (renaming the table when the slug changes) and
// upserts each field on (collection id, field slug). Fields absent from the list are kept.
func (s *CollectionService) UpdateCollection(ctx context.Context, id int64, props domain.CollectionProperties, fields []domain.FieldDefinition, meta domain.MutationMetadata) (domain.Collection, error) {
	props = props.Normalize()
	if err := props.ValidateForUpdate(); err != nil {
		return domain.Collection{}, err
	}
	specs, err := parseFieldDefinitions(fields)
	if err != nil {
		return domain.Collection{}, err
	}
	meta = meta.Normalize()

	var updated domain.Collection
	err = s.tx.WriteTX(ctx, func(tx ports.SchemaTx) error {
		change, err := s.updateProperties(ctx, tx, id, props)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return err
		}
		updated = change.Collection

		if err := s.upsertFields(ctx, tx, id, specs); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventCollectionUpdated, updated, meta)
	})
	if err != nil {
		return domain.Collection{}, domain.Aborted("update collection", err)
	}

	s.logger.InfoContext(ctx, "collection updated", "collection_id", updated.ID, "slug", updated.Slug, "fields", len(specs), "actor", meta.Actor)
	return updated, nil
}

// DeleteCollection removes the collection, its fields and its table.
func (s *CollectionService) DeleteCollection(ctx context.Context, id int64, meta domain.MutationMetadata) error {
	meta = meta.Normalize()

	var deleted domain.Collection
	err := s.tx.WriteTX(ctx, func(tx ports.SchemaTx) error {
		change, err := tx.Metadata().DeleteCollection(ctx, id)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return err
		}
		deleted = change.Collection
		return s.enqueueDeleted(ctx, tx, change, meta)
	})
	if err != nil {
		return domain.Aborted("delete collection", err)
	}

	s.logger.InfoContext(ctx, "collection deleted", "collection_id", deleted.ID, "slug", deleted.Slug, "actor", meta.Actor)
	return nil
}

func (s *CollectionService) RenameField(ctx context.Context, collectionID int64, oldSlug, newSlug string, meta domain.MutationMetadata) (domain.Field, error) {
	oldSlug = domain.NormalizeSlug(oldSlug)
	newSlug = domain.NormalizeSlug(newSlug)
	if err := domain.ValidateFieldSlug(newSlug); err != nil {
		return domain.Field{}, err
	}
	meta = meta.Normalize()

	var renamed domain.Field
	err := s.tx.WriteTX(ctx, func(tx ports.SchemaTx) error {
		change, err := tx.Metadata().RenameField(ctx, collectionID, oldSlug, newSlug)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return err
		}
		renamed = change.Field
		return s.enqueue(ctx, tx, domain.EventCollectionFieldRenamed, change.Collection, meta)
	})
	if err != nil {
		return domain.Field{}, domain.Aborted("rename field", err)
	}

	s.logger.InfoContext(ctx, "field renamed", "collection_id", collectionID, "from", oldSlug, "to", newSlug, "actor", meta.Actor)
	return renamed, nil
}

func (s *CollectionService) DeleteField(ctx context.Context, collectionID int64, slug string, meta domain.MutationMetadata) error {
	slug = domain.NormalizeSlug(slug)
	meta = meta.Normalize()

	err := s.tx.WriteTX(ctx, func(tx ports.SchemaTx) error {
		change, err := tx.Metadata().DeleteField(ctx, collectionID, slug)
		if err != nil {
			return err
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, domain.EventCollectionFieldDeleted, change.Collection, meta)
	})
	if err != nil {
		return domain.Aborted("delete field", err)
	}

	s.logger.InfoContext(ctx, "field deleted", "collection_id", collectionID, "slug", slug, "actor", meta.Actor)
	return nil
}

// GetCollection returns a collection with its fields in column order.
func (s *CollectionService) GetCollection(ctx context.Context, id int64) (domain.CollectionDetail, error) {
	var detail domain.CollectionDetail
	err := s.tx.ReadTX(ctx, func(tx ports.ReadTx) error {
		c, err := tx.Metadata().GetCollection(ctx, id)
		if err != nil {
			return err
		}
		fields, err := tx.Metadata().ListFields(ctx, id)
		if err != nil {
			return err
		}
		detail = domain.CollectionDetail{Collection: c, Fields: fields}
		return nil
	})
	if err != nil {
		return domain.CollectionDetail{}, err
	}
	return detail, nil
}

func (s *CollectionService) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	var out []domain.Collection
	err := s.tx.ReadTX(ctx, func(tx ports.ReadTx) error {
		var err error
		out, err = tx.Metadata().ListCollections(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// updateProperties goes through RenameCollection when the slug is the only change requested.
func (s *CollectionService) updateProperties(ctx context.Context, tx ports.SchemaTx, id int64, props domain.CollectionProperties) (domain.SchemaChange, error) {
	if props.Slug != "" && props.Name == "" {
		return tx.Metadata().RenameCollection(ctx, id, props.Slug)
	}
	return tx.Metadata().UpdateCollection(ctx, id, props)
}

func (s *CollectionService) upsertFields(ctx context.Context, tx ports.SchemaTx, collectionID int64, specs []domain.FieldSpec) error {
	for _, spec := range specs {
		change, err := tx.Metadata().UpsertField(ctx, collectionID, spec)
		if err != nil {
			return fmt.Errorf("upsert field %s: %w", spec.Slug, err)
		}
		if err := s.reconciler.Reconcile(ctx, tx, change); err != nil {
			return fmt.Errorf("reconcile field %s: %w", spec.Slug, err)
		}
	}
	return nil
}

type collectionPayload struct {
	ID     int64          `json:"id"`
	Slug   string         `json:"slug"`
	Name   string         `json:"name"`
	Fields []fieldPayload `json:"fields"`
}

type fieldPayload struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *CollectionService) enqueue(ctx context.Context, tx ports.SchemaTx, eventType string, c domain.Collection, meta domain.MutationMetadata) error {
	fields, err := tx.Metadata().ListFields(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load fields for event: %w", err)
	}
	return s.writeEvent(ctx, tx, eventType, c, fields, meta)
}

func (s *CollectionService) enqueueDeleted(ctx context.Context, tx ports.SchemaTx, change domain.SchemaChange, meta domain.MutationMetadata) error {
	return s.writeEvent(ctx, tx, domain.EventCollectionDeleted, change.Collection, change.CascadedFields, meta)
}

func (s *CollectionService) writeEvent(ctx context.Context, tx ports.SchemaTx, eventType string, c domain.Collection, fields []domain.Field, meta domain.MutationMetadata) error {
	payload := collectionPayload{ID: c.ID, Slug: c.Slug, Name: c.Name, Fields: make([]fieldPayload, 0, len(fields))}
	for _, f := range fields {
		payload.Fields = append(payload.Fields, fieldPayload{Slug: f.Slug, Name: f.Name, Type: f.Type.String()})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	envelope := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SchemaVersion: domain.CurrentEventSchemaVersion,
		AggregateType: "collection",
		AggregateID:   strconv.FormatInt(c.ID, 10),
		OccurredAt:    meta.OccurredAt.UTC(),
		RequestID:     meta.RequestID,
		CorrelationID: meta.CorrelationID,
		Actor:         meta.Actor,
		Source:        meta.Source,
		Payload:       raw,
	}
	if err := tx.Outbox().Enqueue(ctx, "events."+eventType, envelope); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func parseFieldDefinitions(defs []domain.FieldDefinition) ([]domain.FieldSpec, error) {
	specs := make([]domain.FieldSpec, 0, len(defs))
	for i, def := range defs {
		spec, err := def.Parse()
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
