// Package store provides schema-agnostic persistence for semi-structured
// API records. Tables and columns are created on demand from the records
// themselves: the first value seen for a column decides its storage class,
// and the column set only ever grows.
//
// Records carrying an "id" field are upserted by that identity (full row
// replace); records without one are plain inserts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Record maps API field names to scalar values or nested structures.
// Nested maps and slices are serialized to JSON text on write.
type Record map[string]any

// identityColumn is the upsert key for every table that has a natural ID.
const identityColumn = "id"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store owns a single database connection and the schema it has evolved.
// It is not safe for concurrent use; ingestion is strictly sequential.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger

	// Storage class per table per column, decided at first sight and
	// never revisited. Tables absent from the map have not been probed.
	schemas map[string]map[string]storageClass

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database behind dsn and verifies connectivity.
// DSNs starting with postgres:// or postgresql:// use the pgx driver;
// anything else is treated as a SQLite file path.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := dialectFor(dsn)
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		db:      db,
		dialect: d,
		logger:  logger,
		schemas: make(map[string]map[string]storageClass),
	}, nil
}

// Close releases the connection. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// EnsureSchema guarantees that table exists and has a column for every key
// in sample. Missing columns are added with a storage class inferred from
// the sample value. Repeated calls with the same shape are no-ops.
//
// A new table gets an identity column: typed after the sample's "id" value
// when present, otherwise a store-generated auto-incrementing surrogate.
func (s *Store) EnsureSchema(ctx context.Context, table string, sample Record) error {
	if err := validIdent(table); err != nil {
		return err
	}
	for key := range sample {
		if err := validIdent(key); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
	}

	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	if cols == nil {
		return s.createTable(ctx, table, sample)
	}

	for _, key := range sortedKeys(sample) {
		if _, ok := cols[key]; ok {
			continue
		}
		class := classify(sample[key])
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			quoteIdent(table), quoteIdent(key), s.dialect.columnType(class))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, key, err)
		}
		cols[key] = class
		s.logger.Info("column added", "table", table, "column", key, "class", class)
	}
	return nil
}

// Upsert writes rec into table, evolving the schema first so novel keys in
// rec become columns before the write. Records with an "id" replace any
// existing row with the same identity in full; omitted columns null out.
func (s *Store) Upsert(ctx context.Context, table string, rec Record) error {
	if err := s.EnsureSchema(ctx, table, rec); err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}

	keys := sortedKeys(rec)
	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, key := range keys {
		cols[i] = quoteIdent(key)
		args[i] = bindValue(rec[key])
	}

	placeholders := make([]string, len(keys))
	for i := range keys {
		placeholders[i] = s.dialect.placeholder(i + 1)
	}

	_, hasID := rec[identityColumn]
	if hasID && s.dialect.replaceNeedsDelete() {
		return s.replaceByIdentity(ctx, table, cols, placeholders, args, bindValue(rec[identityColumn]))
	}

	verb := "INSERT"
	if hasID {
		verb = "INSERT OR REPLACE"
	}
	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

// replaceByIdentity emulates SQLite's INSERT OR REPLACE on engines without
// it: delete the old row and insert the new one in a single transaction.
func (s *Store) replaceByIdentity(ctx context.Context, table string, cols, placeholders []string, args []any, id any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", table, err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		quoteIdent(table), quoteIdent(identityColumn), s.dialect.placeholder(1))
	if _, err := tx.ExecContext(ctx, del, id); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}

	ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, ins, args...); err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	return tx.Commit()
}

// DistinctIdentities returns the distinct non-null values of column in
// table. A table that was never created yields an empty result, not an
// error: a missing prerequisite table means "produced nothing yet".
func (s *Store) DistinctIdentities(ctx context.Context, table, column string) ([]any, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	if err := validIdent(column); err != nil {
		return nil, err
	}

	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL",
		quoteIdent(column), quoteIdent(table), quoteIdent(column))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
		}
		ids = append(ids, v)
	}
	return ids, rows.Err()
}

// tableColumns returns the known column classes for table, probing the
// database on first access. A nil map means the table does not exist.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]storageClass, error) {
	if cols, ok := s.schemas[table]; ok {
		return cols, nil
	}

	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExistsQuery(), table).Scan(&n); err != nil {
		return nil, fmt.Errorf("probe table %s: %w", table, err)
	}
	if n == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.columnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]storageClass)
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("scan columns of %s: %w", table, err)
		}
		cols[name] = s.dialect.classOf(declared)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.schemas[table] = cols
	return cols, nil
}

func (s *Store) createTable(ctx context.Context, table string, sample Record) error {
	defs := []string{s.identityDef(sample)}
	cols := map[string]storageClass{identityColumn: classINTEGER}
	if idVal, ok := sample[identityColumn]; ok {
		cols[identityColumn] = classify(idVal)
	}

	for _, key := range sortedKeys(sample) {
		if key == identityColumn {
			continue
		}
		class := classify(sample[key])
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(key), s.dialect.columnType(class)))
		cols[key] = class
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	s.schemas[table] = cols
	s.logger.Info("table created", "table", table, "columns", len(cols))
	return nil
}

// identityDef picks the primary key definition: the record's own id when
// it has one, otherwise an auto-incrementing surrogate.
func (s *Store) identityDef(sample Record) string {
	if idVal, ok := sample[identityColumn]; ok {
		return fmt.Sprintf("%s %s PRIMARY KEY", quoteIdent(identityColumn), s.dialect.columnType(classify(idVal)))
	}
	return fmt.Sprintf("%s %s", quoteIdent(identityColumn), s.dialect.surrogateKey())
}

// bindValue converts a record value into a driver-friendly argument.
// Nested structures become canonical JSON text.
func bindValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return val
	}
}

func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
