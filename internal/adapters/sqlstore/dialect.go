package sqlstore

import (
	"fmt"

	"github.com/atvirokodosprendimai/pcm/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

// dialect renders DDL operations into statements for one database engine.
type dialect interface {
	name() string
	// render returns the statements implementing op, in execution order.
	render(op domain.DDLOperation) ([]string, error)
	// castGuard returns a query counting the rows whose value cannot be represented in the
	// new type, or false when the engine's own cast reports such rows.
	castGuard(op domain.AlterColumnType) (string, bool)
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case gormdb.DriverSQLite, "":
		return sqliteDialect{}, nil
	case gormdb.DriverPostgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("no dialect for driver %q", driver)
	}
}

// renderPortable handles the operations both engines spell the same way.
func renderPortable(op domain.DDLOperation) ([]string, bool) {
	switch op := op.(type) {
	case domain.RenameTable:
		return []string{fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, op.From.Quote(), op.To.Quote())}, true
	case domain.DropTable:
		if op.IfExists {
			return []string{fmt.Sprintf(`DROP TABLE IF EXISTS %s`, op.Table.Quote())}, true
		}
		return []string{fmt.Sprintf(`DROP TABLE %s`, op.Table.Quote())}, true
	case domain.AddColumn:
		return []string{fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, op.Table.Quote(), op.Column.Quote(), op.Type.NativeType())}, true
	case domain.RenameColumn:
		return []string{fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN %s TO %s`, op.Table.Quote(), op.From.Quote(), op.To.Quote())}, true
	case domain.DropColumn:
		return []string{fmt.Sprintf(`ALTER TABLE %s DROP COLUMN %s`, op.Table.Quote(), op.Column.Quote())}, true
	}
	return nil, false
}

func validType(t domain.FieldType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFieldType, t)
	}
	return nil
}
