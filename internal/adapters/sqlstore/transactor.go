package sqlstore

import (
	"context"

	"github.com/atvirokodosprendimai/pcm/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

// Transactor opens gorm transactions and hands out the stores bound to them.
type Transactor struct {
	db      *gormdb.DB
	dialect dialect
}

var _ ports.Transactor = (*Transactor)(nil)

func NewTransactor(db *gormdb.DB) (*Transactor, error) {
	d, err := dialectFor(db.Driver)
	if err != nil {
		return nil, err
	}
	return &Transactor{db: db, dialect: d}, nil
}

func (t *Transactor) WriteTX(ctx context.Context, fn func(tx ports.SchemaTx) error) error {
	return t.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return fn(&schemaTx{
			metadata: &metadataStore{tx: tx.DB, lock: true},
			physical: &physicalSchema{tx: tx.DB, dialect: t.dialect},
			outbox:   &outboxWriter{tx: tx.DB},
		})
	})
}

func (t *Transactor) ReadTX(ctx context.Context, fn func(tx ports.ReadTx) error) error {
	return t.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return fn(&readTx{metadata: &metadataStore{tx: tx.DB}})
	})
}

type schemaTx struct {
	metadata *metadataStore
	physical *physicalSchema
	outbox   *outboxWriter
}

func (s *schemaTx) Metadata() ports.MetadataStore  { return s.metadata }
func (s *schemaTx) Physical() ports.PhysicalSchema { return s.physical }
func (s *schemaTx) Outbox() ports.OutboxWriter     { return s.outbox }

type readTx struct {
	metadata *metadataStore
}

func (r *readTx) Metadata() ports.MetadataStore { return r.metadata }
