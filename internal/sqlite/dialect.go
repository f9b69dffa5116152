package sqlite

import (
	"strconv"
	"strings"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// dialect captures the few places where SQLite and Postgres SQL differ.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name     string
	driver   string
	greatest string
	numbered bool
}

var (
	sqliteDialect = dialect{
		name:     types.BackendSQLite,
		driver:   "sqlite",
		greatest: "MAX",
	}
	postgresDialect = dialect{
		name:     types.BackendPostgres,
		driver:   "pgx",
		greatest: "GREATEST",
		numbered: true,
	}
)

func dialectFor(backend string) (dialect, error) {
	switch backend {
	case types.BackendSQLite:
		return sqliteDialect, nil
	case types.BackendPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, types.ErrBackendUnknown
	}
}

// rebind rewrites ? placeholders into $1, $2, ... for dialects that need
// numbered parameters. Queries in this package never contain a literal ?.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// inList returns "?, ?, ?" for n placeholders.
func inList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
