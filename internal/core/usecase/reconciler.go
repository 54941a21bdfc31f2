package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

// SchemaReconciler keeps the physical tables in step with metadata writes. It is invoked
// synchronously after each write, inside the same transaction.
type SchemaReconciler struct {
	logger *slog.Logger
}

func NewSchemaReconciler(logger *slog.Logger) *SchemaReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaReconciler{logger: logger}
}

// Reconcile plans the DDL for change and applies it through tx.
func (r *SchemaReconciler) Reconcile(ctx context.Context, tx ports.SchemaTx, change domain.SchemaChange) error {
	var fields []domain.Field
	if change.Kind == domain.FieldUpdated && change.TypeChanged() {
		var err error
		fields, err = tx.Metadata().ListFields(ctx, change.Collection.ID)
		if err != nil {
			return fmt.Errorf("load fields of %s: %w", change.Collection.Slug, err)
		}
	}

	ops, err := r.Plan(change, fields)
	if err != nil {
		return err
	}

	physical := tx.Physical()
	for _, op := range ops {
		if drop, ok := op.(domain.DropColumn); ok {
			exists, err := physical.TableExists(ctx, drop.Table)
			if err != nil {
				return fmt.Errorf("check table %s: %w", drop.Table, err)
			}
			if !exists {
				r.logger.DebugContext(ctx, "skip ddl on missing table", "op", op.Describe())
				continue
			}
		}
		if err := physical.Apply(ctx, op); err != nil {
			return fmt.Errorf("%s: %w", op.Describe(), err)
		}
		r.logger.DebugContext(ctx, "applied ddl", "op", op.Describe(), "dialect", physical.Dialect())
	}
	return nil
}

// Plan returns the DDL operations that bring the physical schema in line with change.
// fields is the collection's field set after the change and is only consulted for type
// changes.
func (r *SchemaReconciler) Plan(change domain.SchemaChange, fields []domain.Field) ([]domain.DDLOperation, error) {
	slug := change.Collection.Slug
	table, err := domain.TableIdentifier(slug)
	if err != nil {
		return nil, err
	}

	switch change.Kind {
	case domain.CollectionCreated:
		identity, err := domain.IdentityColumnIdentifier(slug)
		if err != nil {
			return nil, err
		}
		return []domain.DDLOperation{domain.CreateTable{Table: table, Identity: identity}}, nil

	case domain.CollectionUpdated:
		if !change.SlugChanged() {
			return nil, nil
		}
		prevSlug := change.PreviousCollection.Slug
		from, err := domain.TableIdentifier(prevSlug)
		if err != nil {
			return nil, err
		}
		prevIdentity, err := domain.IdentityColumnIdentifier(prevSlug)
		if err != nil {
			return nil, err
		}
		identity, err := domain.IdentityColumnIdentifier(slug)
		if err != nil {
			return nil, err
		}
		return []domain.DDLOperation{
			domain.RenameTable{From: from, To: table},
			domain.RenameColumn{Table: table, From: prevIdentity, To: identity},
		}, nil

	case domain.CollectionDeleted:
		// Dropping the table removes every column; cascaded fields need no DDL of their own.
		return []domain.DDLOperation{domain.DropTable{Table: table, IfExists: true}}, nil

	case domain.FieldAdded:
		column, err := domain.ColumnIdentifier(change.Field.Slug)
		if err != nil {
			return nil, err
		}
		return []domain.DDLOperation{domain.AddColumn{Table: table, Column: column, Type: change.Field.Type}}, nil

	case domain.FieldUpdated:
		if change.PreviousField == nil {
			return nil, fmt.Errorf("field update of %s.%s has no previous state", slug, change.Field.Slug)
		}
		if !change.TypeChanged() {
			return nil, nil
		}
		return r.planTypeChange(change, table, fields)

	case domain.FieldRenamed:
		if change.PreviousField == nil {
			return nil, fmt.Errorf("field rename of %s.%s has no previous state", slug, change.Field.Slug)
		}
		from, err := domain.ColumnIdentifier(change.PreviousField.Slug)
		if err != nil {
			return nil, err
		}
		to, err := domain.ColumnIdentifier(change.Field.Slug)
		if err != nil {
			return nil, err
		}
		if from == to {
			return nil, nil
		}
		return []domain.DDLOperation{domain.RenameColumn{Table: table, From: from, To: to}}, nil

	case domain.FieldDeleted:
		column, err := domain.ColumnIdentifier(change.Field.Slug)
		if err != nil {
			return nil, err
		}
		return []domain.DDLOperation{domain.DropColumn{Table: table, Column: column}}, nil
	}

	return nil, fmt.Errorf("unsupported schema change %q", change.Kind)
}

func (r *SchemaReconciler) planTypeChange(change domain.SchemaChange, table domain.Identifier, fields []domain.Field) ([]domain.DDLOperation, error) {
	slug := change.Collection.Slug
	column, err := domain.ColumnIdentifier(change.Field.Slug)
	if err != nil {
		return nil, err
	}
	identity, err := domain.IdentityColumnIdentifier(slug)
	if err != nil {
		return nil, err
	}
	rebuild, err := domain.RebuildTableIdentifier(slug)
	if err != nil {
		return nil, err
	}

	columns := make([]domain.ColumnDefinition, 0, len(fields))
	seen := false
	for _, f := range fields {
		name, err := domain.ColumnIdentifier(f.Slug)
		if err != nil {
			return nil, err
		}
		ft := f.Type
		if f.Slug == change.Field.Slug {
			ft = change.Field.Type
			seen = true
		}
		columns = append(columns, domain.ColumnDefinition{Name: name, Type: ft})
	}
	if !seen {
		columns = append(columns, domain.ColumnDefinition{Name: column, Type: change.Field.Type})
	}

	return []domain.DDLOperation{domain.AlterColumnType{
		Table:    table,
		Identity: identity,
		Rebuild:  rebuild,
		Column:   column,
		From:     change.PreviousField.Type,
		To:       change.Field.Type,
		Columns:  columns,
	}}, nil
}
