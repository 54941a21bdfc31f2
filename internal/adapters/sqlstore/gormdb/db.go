package gormdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB holds a read pool and a write pool over the same database. On SQLite the write pool
// has a single connection, which serializes every write transaction.
type DB struct {
	Driver string
	R      *gorm.DB
	W      *gorm.DB
}

type Tx struct {
	*gorm.DB
}

type cbfn func(tx *Tx) error

func (db *DB) ReadTX(ctx context.Context, fn cbfn) error {
	return db.R.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

func (db *DB) WriteTX(ctx context.Context, fn cbfn) error {
	return db.W.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	})
}

func (db *DB) WriteSQLDB() (*sql.DB, error) {
	return db.W.DB()
}

func (db *DB) Close() error {
	var firstErr error
	closeOne := func(g *gorm.DB) {
		if err := closeGORM(g); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closeOne(db.R)
	closeOne(db.W)
	return firstErr
}

var _ io.Closer = (*DB)(nil)

// Open connects to driver ("sqlite" or "postgres"). For SQLite dsn is a file path and the
// connection pragmas are added here; for Postgres it is passed to pgx unchanged.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newLogger() logger.Interface {
	return logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

func openSQLite(file string) (*DB, error) {
	if strings.TrimSpace(file) == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	log := newLogger()

	reader, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: buildDSN(file, true)}, &gorm.Config{
		PrepareStmt: true,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}

	// The writer issues DDL whose text is different for every table, so it does not cache
	// prepared statements.
	writer, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: buildDSN(file, false)}, &gorm.Config{
		Logger: log,
	})
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	if err := configurePools(reader, writer, runtime.NumCPU(), 1); err != nil {
		return nil, err
	}
	return &DB{Driver: DriverSQLite, R: reader, W: writer}, nil
}

func openPostgres(dsn string) (*DB, error) {
	log := newLogger()

	reader, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}
	writer, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	if err := configurePools(reader, writer, runtime.NumCPU(), runtime.NumCPU()); err != nil {
		return nil, err
	}
	return &DB{Driver: DriverPostgres, R: reader, W: writer}, nil
}

func configurePools(reader, writer *gorm.DB, readConns, writeConns int) error {
	rdb, err := reader.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return fmt.Errorf("reader sql db: %w", err)
	}
	wdb, err := writer.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return fmt.Errorf("writer sql db: %w", err)
	}

	rdb.SetMaxOpenConns(readConns)
	rdb.SetMaxIdleConns(readConns)
	rdb.SetConnMaxLifetime(0)
	rdb.SetConnMaxIdleTime(0)

	wdb.SetMaxOpenConns(writeConns)
	wdb.SetMaxIdleConns(writeConns)
	wdb.SetConnMaxLifetime(0)
	wdb.SetConnMaxIdleTime(0)
	return nil
}

// buildDSN appends per-connection pragmas so every pooled connection gets them, not just the
// first one.
func buildDSN(file string, readOnly bool) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
		"cache_size(-20000)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"trusted_schema(OFF)",
	}
	if readOnly {
		pragmas = append(pragmas, "query_only(1)")
	} else {
		pragmas = append(pragmas, "query_only(0)")
	}

	params := make([]string, 0, len(pragmas)+1)
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	if !readOnly {
		params = append(params, "_txlock=immediate")
	}

	sep := "?"
	if strings.Contains(file, "?") {
		sep = "&"
	}
	return file + sep + strings.Join(params, "&")
}

func closeGORM(g *gorm.DB) error {
	if g == nil {
		return nil
	}
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
