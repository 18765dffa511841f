package resource

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLimit caps page size regardless of what the caller requests.
// DefaultLimit applies when the caller omits limit or supplies a
// non-positive value.
const (
	MaxLimit     = 1000
	DefaultLimit = 100
)

// ListParams are the caller-controlled knobs for a list query.
type ListParams struct {
	EntityID string // equality filter on the resource's entity FK, "" for none
	OrderBy  string // column name, validated; "" falls back to id
	Desc     bool
	Limit    int
	Offset   int
}

// identifierRegex validates SQL identifiers (column names). Must start with
// a letter or underscore, followed by alphanumeric or underscore.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqlReservedWords contains SQL keywords rejected as identifiers. No
// platform table has a column named after one, so any match is a malformed
// or hostile order column.
var sqlReservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "INTO": true,
	"FROM": true, "WHERE": true, "TABLE": true, "DATABASE": true,
	"GRANT": true, "REVOKE": true, "INDEX": true, "VIEW": true,
	"PROCEDURE": true, "FUNCTION": true, "TRIGGER": true, "SCHEMA": true,
}

// ValidateIdentifier ensures a column name is shaped like an identifier.
// It does not check the column exists; an unknown column surfaces as a
// store error the boundary reports as a 400.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("identifier too long (max 128 chars): %q", name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if sqlReservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", name)
	}
	return nil
}

// quoteIdent quotes an identifier for the given driver. MySQL uses
// backticks; sqlite and postgres take standard double quotes.
func quoteIdent(driver, name string) string {
	if driver == "mysql" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Normalize clamps paging and fills defaults: limit is capped at MaxLimit,
// non-positive limits fall back to DefaultLimit, negative offsets to zero,
// and an empty order column to the primary key.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.OrderBy == "" {
		p.OrderBy = "id"
	}
	return p
}

// whereClause builds the optional entity_id equality filter shared by the
// list and count statements.
func whereClause(driver string, r Resource, p ListParams) (string, []interface{}, error) {
	if p.EntityID == "" {
		return "", nil, nil
	}
	if r.EntityIDColumn == "" {
		return "", nil, fmt.Errorf("resource %q does not support the entity_id filter", r.Name)
	}
	return " WHERE " + quoteIdent(driver, r.EntityIDColumn) + " = ?", []interface{}{p.EntityID}, nil
}

// BuildList constructs the paginated SELECT for a list call. Returned SQL
// uses ?-placeholders; callers rebind for the connected driver. Params must
// already be normalized.
func BuildList(driver string, r Resource, p ListParams) (string, []interface{}, error) {
	if err := ValidateIdentifier(p.OrderBy); err != nil {
		return "", nil, err
	}
	where, args, err := whereClause(driver, r, p)
	if err != nil {
		return "", nil, err
	}

	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(driver, r.Table))
	b.WriteString(where)
	b.WriteString(" ORDER BY ")
	b.WriteString(quoteIdent(driver, p.OrderBy))
	b.WriteString(" ")
	b.WriteString(dir)
	b.WriteString(" LIMIT ? OFFSET ?")

	args = append(args, p.Limit, p.Offset)
	return b.String(), args, nil
}

// BuildCount constructs the exact-count statement under the same filter as
// BuildList, so pagination totals line up with the rows returned.
func BuildCount(driver string, r Resource, p ListParams) (string, []interface{}, error) {
	where, args, err := whereClause(driver, r, p)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + quoteIdent(driver, r.Table) + where, args, nil
}

// BuildGet constructs the single-record fetch by primary identity.
func BuildGet(driver string, r Resource) string {
	return "SELECT * FROM " + quoteIdent(driver, r.Table) + " WHERE " + quoteIdent(driver, "id") + " = ?"
}
