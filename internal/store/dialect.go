package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// storageClass is the closed set of value kinds a column can hold. The
// class is decided once, from the first value seen for the column, and
// recorded in the store's schema cache.
type storageClass string

const (
	classINTEGER storageClass = "INTEGER"
	classREAL    storageClass = "REAL"
	classTEXT    storageClass = "TEXT"
)

// classify maps a record value onto its storage class. Nested structures
// are opaque: they serialize to JSON and live in TEXT columns. Unknown
// and null values default to TEXT.
func classify(v any) storageClass {
	switch val := v.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return classINTEGER
	case float32, float64:
		return classREAL
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return classINTEGER
		}
		return classREAL
	case string:
		return classTEXT
	case map[string]any, []any:
		return classTEXT
	default:
		return classTEXT
	}
}

// dialect covers the engine differences between the SQLite and Postgres
// backends: placeholder style, type names, catalog queries, and whether
// replace-by-identity needs an explicit delete.
type dialect interface {
	driverName() string
	placeholder(i int) string
	columnType(class storageClass) string
	surrogateKey() string
	tableExistsQuery() string
	columnsQuery() string
	classOf(declaredType string) storageClass
	replaceNeedsDelete() bool
}

// dialectFor picks the backend from the DSN shape: Postgres URLs go to
// pgx, everything else is a SQLite file path.
func dialectFor(dsn string) dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgresDialect{}
	}
	return sqliteDialect{}
}

type sqliteDialect struct{}

func (sqliteDialect) driverName() string       { return "sqlite" }
func (sqliteDialect) placeholder(int) string   { return "?" }
func (sqliteDialect) replaceNeedsDelete() bool { return false }
func (sqliteDialect) surrogateKey() string     { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (sqliteDialect) columnType(class storageClass) string {
	return string(class)
}

func (sqliteDialect) tableExistsQuery() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (sqliteDialect) columnsQuery() string {
	return "SELECT name, type FROM pragma_table_info(?)"
}

func (sqliteDialect) classOf(declared string) storageClass {
	switch strings.ToUpper(declared) {
	case "INTEGER":
		return classINTEGER
	case "REAL":
		return classREAL
	default:
		return classTEXT
	}
}

type postgresDialect struct{}

func (postgresDialect) driverName() string       { return "pgx" }
func (postgresDialect) replaceNeedsDelete() bool { return true }

func (postgresDialect) placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (postgresDialect) columnType(class storageClass) string {
	switch class {
	case classINTEGER:
		return "BIGINT"
	case classREAL:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (postgresDialect) surrogateKey() string {
	return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
}

func (postgresDialect) tableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (postgresDialect) columnsQuery() string {
	return "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1"
}

func (postgresDialect) classOf(declared string) storageClass {
	switch strings.ToLower(declared) {
	case "bigint", "integer", "smallint":
		return classINTEGER
	case "double precision", "real", "numeric":
		return classREAL
	default:
		return classTEXT
	}
}
