package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

// memState is the whole store. WriteTX works on a clone and swaps it in on success, which
// gives the fake the same all-or-nothing behaviour as a database transaction.
type memState struct {
	nextID      int64
	collections map[int64]domain.Collection
	fields      map[int64][]domain.Field
	tables      map[string][]string
	outbox      []outboxEntry
}

type outboxEntry struct {
	topic    string
	envelope domain.EventEnvelope
}

func newMemState() *memState {
	return &memState{
		collections: map[int64]domain.Collection{},
		fields:      map[int64][]domain.Field{},
		tables:      map[string][]string{},
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		nextID:      s.nextID,
		collections: make(map[int64]domain.Collection, len(s.collections)),
		fields:      make(map[int64][]domain.Field, len(s.fields)),
		tables:      make(map[string][]string, len(s.tables)),
		outbox:      slices.Clone(s.outbox),
	}
	for k, v := range s.collections {
		out.collections[k] = v
	}
	for k, v := range s.fields {
		out.fields[k] = slices.Clone(v)
	}
	for k, v := range s.tables {
		out.tables[k] = slices.Clone(v)
	}
	return out
}

type memTransactor struct {
	state   *memState
	applyFn func(op domain.DDLOperation) error
	applied []string
	renames int
}

func newMemTransactor() *memTransactor {
	return &memTransactor{state: newMemState()}
}

func (m *memTransactor) WriteTX(ctx context.Context, fn func(tx ports.SchemaTx) error) error {
	work := m.state.clone()
	tx := &memTx{state: work, owner: m}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = work
	m.applied = append(m.applied, tx.applied...)
	return nil
}

func (m *memTransactor) ReadTX(ctx context.Context, fn func(tx ports.ReadTx) error) error {
	return fn(&memTx{state: m.state, owner: m})
}

type memTx struct {
	state   *memState
	owner   *memTransactor
	applied []string
}

func (t *memTx) Metadata() ports.MetadataStore  { return (*memMetadata)(t) }
func (t *memTx) Physical() ports.PhysicalSchema { return (*memPhysical)(t) }
func (t *memTx) Outbox() ports.OutboxWriter     { return (*memOutbox)(t) }

type memMetadata memTx

func (m *memMetadata) bySlug(slug string) (domain.Collection, bool) {
	for _, c := range m.state.collections {
		if c.Slug == slug {
			return c, true
		}
	}
	return domain.Collection{}, false
}

func (m *memMetadata) CreateCollection(_ context.Context, slug, name string) (domain.SchemaChange, error) {
	if _, ok := m.bySlug(slug); ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: collection %q", domain.ErrDuplicateSlug, slug)
	}
	m.state.nextID++
	now := time.Now().UTC()
	c := domain.Collection{ID: m.state.nextID, Slug: slug, Name: name, CreatedAt: now, UpdatedAt: now}
	m.state.collections[c.ID] = c
	return domain.SchemaChange{Kind: domain.CollectionCreated, Collection: c}, nil
}

func (m *memMetadata) RenameCollection(ctx context.Context, id int64, newSlug string) (domain.SchemaChange, error) {
	m.owner.renames++
	return m.UpdateCollection(ctx, id, domain.CollectionProperties{Slug: newSlug})
}

func (m *memMetadata) UpdateCollection(_ context.Context, id int64, props domain.CollectionProperties) (domain.SchemaChange, error) {
	prev, ok := m.state.collections[id]
	if !ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, id)
	}
	next := prev
	if props.Slug != "" && props.Slug != prev.Slug {
		if _, taken := m.bySlug(props.Slug); taken {
			return domain.SchemaChange{}, fmt.Errorf("%w: collection %q", domain.ErrDuplicateSlug, props.Slug)
		}
		next.Slug = props.Slug
	}
	if props.Name != "" {
		next.Name = props.Name
	}
	m.state.collections[id] = next
	return domain.SchemaChange{Kind: domain.CollectionUpdated, Collection: next, PreviousCollection: &prev}, nil
}

func (m *memMetadata) DeleteCollection(_ context.Context, id int64) (domain.SchemaChange, error) {
	c, ok := m.state.collections[id]
	if !ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, id)
	}
	cascaded := m.state.fields[id]
	delete(m.state.collections, id)
	delete(m.state.fields, id)
	return domain.SchemaChange{Kind: domain.CollectionDeleted, Collection: c, CascadedFields: cascaded}, nil
}

func (m *memMetadata) UpsertField(_ context.Context, collectionID int64, spec domain.FieldSpec) (domain.SchemaChange, error) {
	c, ok := m.state.collections[collectionID]
	if !ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, collectionID)
	}
	fields := m.state.fields[collectionID]
	for i, f := range fields {
		if f.Slug != spec.Slug {
			continue
		}
		prev := f
		f.Name = spec.NameOr(f.Name)
		f.Type = spec.Type
		fields[i] = f
		return domain.SchemaChange{Kind: domain.FieldUpdated, Collection: c, Field: f, PreviousField: &prev}, nil
	}
	f := domain.Field{CollectionID: collectionID, Slug: spec.Slug, Name: spec.NameOr(spec.Slug), Type: spec.Type, Position: len(fields) + 1}
	m.state.fields[collectionID] = append(fields, f)
	return domain.SchemaChange{Kind: domain.FieldAdded, Collection: c, Field: f}, nil
}

func (m *memMetadata) RenameField(_ context.Context, collectionID int64, oldSlug, newSlug string) (domain.SchemaChange, error) {
	c, ok := m.state.collections[collectionID]
	if !ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, collectionID)
	}
	fields := m.state.fields[collectionID]
	idx := -1
	for i, f := range fields {
		if f.Slug == newSlug && oldSlug != newSlug {
			return domain.SchemaChange{}, fmt.Errorf("%w: field %q", domain.ErrDuplicateSlug, newSlug)
		}
		if f.Slug == oldSlug {
			idx = i
		}
	}
	if idx < 0 {
		return domain.SchemaChange{}, fmt.Errorf("%w: %q", domain.ErrUnknownField, oldSlug)
	}
	prev := fields[idx]
	fields[idx].Slug = newSlug
	return domain.SchemaChange{Kind: domain.FieldRenamed, Collection: c, Field: fields[idx], PreviousField: &prev}, nil
}

func (m *memMetadata) DeleteField(_ context.Context, collectionID int64, slug string) (domain.SchemaChange, error) {
	c, ok := m.state.collections[collectionID]
	if !ok {
		return domain.SchemaChange{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, collectionID)
	}
	fields := m.state.fields[collectionID]
	for i, f := range fields {
		if f.Slug == slug {
			m.state.fields[collectionID] = slices.Delete(fields, i, i+1)
			return domain.SchemaChange{Kind: domain.FieldDeleted, Collection: c, Field: f}, nil
		}
	}
	return domain.SchemaChange{}, fmt.Errorf("%w: %q", domain.ErrUnknownField, slug)
}

func (m *memMetadata) GetCollection(_ context.Context, id int64) (domain.Collection, error) {
	c, ok := m.state.collections[id]
	if !ok {
		return domain.Collection{}, fmt.Errorf("%w: %d", domain.ErrUnknownCollection, id)
	}
	return c, nil
}

func (m *memMetadata) ListCollections(context.Context) ([]domain.Collection, error) {
	out := make([]domain.Collection, 0, len(m.state.collections))
	for _, c := range m.state.collections {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Collection) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memMetadata) ListFields(_ context.Context, collectionID int64) ([]domain.Field, error) {
	return slices.Clone(m.state.fields[collectionID]), nil
}

type memPhysical memTx

func (p *memPhysical) Dialect() string { return "memory" }

func (p *memPhysical) TableExists(_ context.Context, table domain.Identifier) (bool, error) {
	_, ok := p.state.tables[table.String()]
	return ok, nil
}

func (p *memPhysical) Apply(_ context.Context, op domain.DDLOperation) error {
	if p.owner.applyFn != nil {
		if err := p.owner.applyFn(op); err != nil {
			return err
		}
	}
	tables := p.state.tables
	switch op := op.(type) {
	case domain.CreateTable:
		if _, ok := tables[op.Table.String()]; ok {
			return fmt.Errorf("table %s exists", op.Table)
		}
		tables[op.Table.String()] = []string{op.Identity.String()}
	case domain.RenameTable:
		cols, ok := tables[op.From.String()]
		if !ok {
			return fmt.Errorf("no table %s", op.From)
		}
		delete(tables, op.From.String())
		tables[op.To.String()] = cols
	case domain.DropTable:
		delete(tables, op.Table.String())
	case domain.AddColumn:
		tables[op.Table.String()] = append(tables[op.Table.String()], op.Column.String())
	case domain.RenameColumn:
		cols := tables[op.Table.String()]
		i := slices.Index(cols, op.From.String())
		if i < 0 {
			return fmt.Errorf("no column %s.%s", op.Table, op.From)
		}
		cols[i] = op.To.String()
	case domain.DropColumn:
		cols := tables[op.Table.String()]
		i := slices.Index(cols, op.Column.String())
		if i < 0 {
			return fmt.Errorf("no column %s.%s", op.Table, op.Column)
		}
		tables[op.Table.String()] = slices.Delete(cols, i, i+1)
	case domain.AlterColumnType:
		if !slices.Contains(tables[op.Table.String()], op.Column.String()) {
			return fmt.Errorf("no column %s.%s", op.Table, op.Column)
		}
	}
	p.applied = append(p.applied, op.Describe())
	return nil
}

type memOutbox memTx

func (o *memOutbox) Enqueue(_ context.Context, topic string, envelope domain.EventEnvelope) error {
	o.state.outbox = append(o.state.outbox, outboxEntry{topic: topic, envelope: envelope})
	return nil
}
