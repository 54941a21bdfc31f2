package sqlstore

import (
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (d sqliteDialect) render(op domain.DDLOperation) ([]string, error) {
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
		return []string{d.createTable(op.Table, op.Identity, nil)}, nil
	case domain.AlterColumnType:
		return d.rebuild(op)
	}
	return nil, fmt.Errorf("sqlite: unsupported ddl operation %T", op)
}

func (sqliteDialect) createTable(table, identity domain.Identifier, columns []domain.ColumnDefinition) string {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, identity.Quote()+" integer PRIMARY KEY AUTOINCREMENT")
	for _, c := range columns {
		defs = append(defs, c.Name.Quote()+" "+c.Type.NativeType())
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, table.Quote(), strings.Join(defs, ", "))
}

// rebuild changes a column type by copying the table, since SQLite has no ALTER COLUMN.
// The copy runs inside the caller's transaction, so a failure leaves the original table.
func (d sqliteDialect) rebuild(op domain.AlterColumnType) ([]string, error) {
	if err := validType(op.To); err != nil {
		return nil, err
	}
	if len(op.Columns) == 0 {
		return nil, fmt.Errorf("sqlite: rebuild of %s has no column set", op.Table)
	}

	names := []string{op.Identity.Quote()}
	selects := []string{op.Identity.Quote()}
	for _, c := range op.Columns {
		if err := validType(c.Type); err != nil {
			return nil, err
		}
		names = append(names, c.Name.Quote())
		if c.Name == op.Column {
			selects = append(selects, sqliteCastExpr(c.Name.Quote(), op.To)+" AS "+c.Name.Quote())
			continue
		}
		selects = append(selects, c.Name.Quote())
	}

	return []string{
		d.createTable(op.Rebuild, op.Identity, op.Columns),
		fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s`, op.Rebuild.Quote(), strings.Join(names, ", "), strings.Join(selects, ", "), op.Table.Quote()),
		fmt.Sprintf(`DROP TABLE %s`, op.Table.Quote()),
		fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, op.Rebuild.Quote(), op.Table.Quote()),
	}, nil
}

func (sqliteDialect) castGuard(op domain.AlterColumnType) (string, bool) {
	c := op.Column.Quote()
	var ok string
	switch op.To {
	case domain.FieldTypeInt:
		ok = sqliteIntegerPredicate(c)
	case domain.FieldTypeNumeric:
		ok = sqliteNumericPredicate(c)
	default:
		return "", false
	}
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND NOT (%s)`, op.Table.Quote(), c, ok), true
}

// Bounds of the native integer column type. Postgres rejects values outside them, so the
// SQLite guard does too instead of letting CAST clamp to the int64 range.
const (
	sqliteIntMin = "-2147483648"
	sqliteIntMax = "2147483647"
	// Significant digits a double holds exactly. NUMERIC affinity stores longer decimals as
	// REAL and would round them.
	sqliteNumericMaxDigits = 15
)

// sqliteIntegerPredicate accepts integers and integral reals within the integer range, and
// text holding an optionally signed run of digits whose value is within it.
func sqliteIntegerPredicate(c string) string {
	s := "trim(" + c + ")"
	digits := "ltrim(" + s + ", '+-')"
	return fmt.Sprintf(`(typeof(%[1]s) = 'integer' AND %[1]s BETWEEN %[4]s AND %[5]s)`+
		` OR (typeof(%[1]s) = 'real' AND %[1]s = CAST(%[1]s AS INTEGER) AND %[1]s BETWEEN %[4]s AND %[5]s)`+
		` OR (typeof(%[1]s) = 'text' AND length(%[2]s) - length(%[3]s) <= 1 AND %[3]s <> '' AND %[3]s NOT GLOB '*[^0-9]*'`+
		` AND length(ltrim(%[3]s, '0')) <= 10 AND CAST(%[2]s AS INTEGER) BETWEEN %[4]s AND %[5]s)`,
		c, s, digits, sqliteIntMin, sqliteIntMax)
}

// sqliteNumericPredicate accepts integers, reals and text holding an optionally signed
// decimal with at most one point and no more significant digits than survive the
// conversion unchanged.
func sqliteNumericPredicate(c string) string {
	s := "trim(" + c + ")"
	digits := "ltrim(" + s + ", '+-')"
	return fmt.Sprintf(`typeof(%[1]s) IN ('integer', 'real')`+
		` OR (typeof(%[1]s) = 'text' AND length(%[2]s) - length(%[3]s) <= 1 AND %[3]s NOT IN ('', '.')`+
		` AND %[3]s NOT GLOB '*[^0-9.]*' AND %[3]s NOT GLOB '*.*.*'`+
		` AND length(replace(ltrim(%[3]s, '0'), '.', '')) <= %[4]d)`,
		c, s, digits, sqliteNumericMaxDigits)
}

func sqliteCastExpr(c string, to domain.FieldType) string {
	switch to {
	case domain.FieldTypeInt:
		return fmt.Sprintf(`CASE WHEN typeof(%[1]s) = 'text' THEN CAST(trim(%[1]s) AS INTEGER) ELSE CAST(%[1]s AS INTEGER) END`, c)
	case domain.FieldTypeNumeric:
		return fmt.Sprintf(`CASE WHEN typeof(%[1]s) = 'text' THEN CAST(trim(%[1]s) AS NUMERIC) ELSE %[1]s END`, c)
	default:
		return fmt.Sprintf(`CAST(%s AS TEXT)`, c)
	}
}
