package sqlstore

import (
	"fmt"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) render(op domain.DDLOperation) ([]string, error) {
	if add, ok := op.(domain.AddColumn); ok {
		if err := validType(add.Type); err != nil {
			return nil, err
		}
	}
	if stmts, ok := renderPortable(op); ok {
		return stmts, nil
	}
	switch op := op.(type) {
	case domain.CreateTable:
		return []string{fmt.Sprintf(`CREATE TABLE %s (%s serial PRIMARY KEY)`, op.Table.Quote(), op.Identity.Quote())}, nil
	case domain.AlterColumnType:
		if err := validType(op.To); err != nil {
			return nil, err
		}
		native := op.To.NativeType()
		return []string{fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s`,
			op.Table.Quote(), op.Column.Quote(), native, postgresCastSource(op), native)}, nil
	}
	return nil, fmt.Errorf("postgres: unsupported ddl operation %T", op)
}

// Text sources are trimmed so both engines accept the same values.
func postgresCastSource(op domain.AlterColumnType) string {
	c := op.Column.Quote()
	switch op.From {
	case domain.FieldTypeText, domain.FieldTypeVarchar:
		if op.To == domain.FieldTypeInt || op.To == domain.FieldTypeNumeric {
			return "trim(" + c + ")"
		}
	}
	return c
}

// castGuard rejects fractional values on numeric to int, which the native cast would round.
func (postgresDialect) castGuard(op domain.AlterColumnType) (string, bool) {
	if op.From != domain.FieldTypeNumeric || op.To != domain.FieldTypeInt {
		return "", false
	}
	c := op.Column.Quote()
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s <> trunc(%s)`, op.Table.Quote(), c, c, c), true
}
