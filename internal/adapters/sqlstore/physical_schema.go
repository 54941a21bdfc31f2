package sqlstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

// physicalSchema executes rendered DDL on the transaction it is bound to. Both SQLite and
// Postgres run DDL transactionally, so a rollback also undoes every statement issued here.
type physicalSchema struct {
	tx      *gorm.DB
	dialect dialect
}

var _ ports.PhysicalSchema = (*physicalSchema)(nil)

func (p *physicalSchema) Dialect() string {
	return p.dialect.name()
}

func (p *physicalSchema) TableExists(ctx context.Context, table domain.Identifier) (bool, error) {
	if table.IsZero() {
		return false, fmt.Errorf("table identifier is empty")
	}
	return p.tx.WithContext(ctx).Migrator().HasTable(table.String()), nil
}

func (p *physicalSchema) Apply(ctx context.Context, op domain.DDLOperation) error {
	db := p.tx.WithContext(ctx)

	if alter, ok := op.(domain.AlterColumnType); ok {
		if err := p.checkCast(db, alter); err != nil {
			return err
		}
	}

	stmts, err := p.dialect.render(op)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec %q: %w", stmt, classifyError(err))
		}
	}
	return nil
}

func (p *physicalSchema) checkCast(db *gorm.DB, op domain.AlterColumnType) error {
	guard, ok := p.dialect.castGuard(op)
	if !ok {
		return nil
	}
	var failing int64
	if err := db.Raw(guard).Scan(&failing).Error; err != nil {
		return fmt.Errorf("check cast of %s.%s: %w", op.Table, op.Column, classifyError(err))
	}
	if failing > 0 {
		return fmt.Errorf("%w: %d rows of %s.%s cannot be represented as %s", domain.ErrTypeCast, failing, op.Table, op.Column, op.To)
	}
	return nil
}
