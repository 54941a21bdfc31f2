package ports

import (
	"context"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

// PhysicalSchema applies DDL operations to the data tables of the store.
type PhysicalSchema interface {
	Dialect() string
	TableExists(ctx context.Context, table domain.Identifier) (bool, error)
	Apply(ctx context.Context, op domain.DDLOperation) error
}

// SchemaTx groups the stores bound to one write transaction.
type SchemaTx interface {
	Metadata() MetadataStore
	Physical() PhysicalSchema
	Outbox() OutboxWriter
}

// ReadTx groups the stores bound to one read-only transaction.
type ReadTx interface {
	Metadata() MetadataStore
}

// Transactor runs fn inside a transaction. A non-nil error from fn rolls back every write
// and every DDL statement issued through the transaction.
type Transactor interface {
	WriteTX(ctx context.Context, fn func(tx SchemaTx) error) error
	ReadTX(ctx context.Context, fn func(tx ReadTx) error) error
}
