package domain

// DDLOperation is one statement of the schema grammar. Dialects render operations into SQL;
// nothing else builds DDL text.
type DDLOperation interface {
	// Target is the table the operation acts on.
	Target() Identifier
	Describe() string
}

type CreateTable struct {
	Table    Identifier
	Identity Identifier
}

type RenameTable struct {
	From Identifier
	To   Identifier
}

type DropTable struct {
	Table    Identifier
	IfExists bool
}

type AddColumn struct {
	Table  Identifier
	Column Identifier
	Type   FieldType
}

type RenameColumn struct {
	Table Identifier
	From  Identifier
	To    Identifier
}

// AlterColumnType changes the type of Column. Columns is the full field column set of the
// table in position order after the change, and Identity its surrogate key; dialects that
// cannot alter a type in place rebuild the table from them.
type AlterColumnType struct {
	Table    Identifier
	Identity Identifier
	Rebuild  Identifier
	Column   Identifier
	From     FieldType
	To       FieldType
	Columns  []ColumnDefinition
}

type DropColumn struct {
	Table  Identifier
	Column Identifier
}

type ColumnDefinition struct {
	Name Identifier
	Type FieldType
}

func (op CreateTable) Target() Identifier     { return op.Table }
func (op RenameTable) Target() Identifier     { return op.From }
func (op DropTable) Target() Identifier       { return op.Table }
func (op AddColumn) Target() Identifier       { return op.Table }
func (op RenameColumn) Target() Identifier    { return op.Table }
func (op AlterColumnType) Target() Identifier { return op.Table }
func (op DropColumn) Target() Identifier      { return op.Table }

func (op CreateTable) Describe() string { return "create table " + op.Table.String() }
func (op RenameTable) Describe() string {
	return "rename table " + op.From.String() + " to " + op.To.String()
}
func (op DropTable) Describe() string { return "drop table " + op.Table.String() }
func (op AddColumn) Describe() string {
	return "add column " + op.Table.String() + "." + op.Column.String() + " " + op.Type.NativeType()
}
func (op RenameColumn) Describe() string {
	return "rename column " + op.Table.String() + "." + op.From.String() + " to " + op.To.String()
}
func (op AlterColumnType) Describe() string {
	return "alter column " + op.Table.String() + "." + op.Column.String() + " type " + op.To.NativeType()
}
func (op DropColumn) Describe() string {
	return "drop column " + op.Table.String() + "." + op.Column.String()
}
