package query

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"recon_sync/ingestion/internal/models"
)

// ErrUnsupportedTable is returned when statements are requested for a table
// that no record kind writes to
var ErrUnsupportedTable = errors.New("unsupported table")

// Mode selects the statement flavour
type Mode string

const (
	// ModeInsert emits plain INSERT statements
	ModeInsert Mode = "insert"
	// ModeUpsert overwrites an existing row with the same id
	ModeUpsert Mode = "upsert"
)

// ParseMode validates a configured statement mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeInsert:
		return ModeInsert, nil
	case ModeUpsert, "":
		return ModeUpsert, nil
	default:
		return "", fmt.Errorf("unknown persist mode %q", s)
	}
}

// Statement is a single-row write for one record
type Statement struct {
	Table    string
	RecordID string
	Columns  []string
	Args     []any
	Mode     Mode
}

var teamColumns = []string{"id", "number", "name"}

var eventColumns = []string{
	"id", "name", "venue", "date_start", "date_end", "season", "type",
	"street", "postal_code", "city", "state", "country",
}

// BuildInserts returns one statement per record for the destination table.
// Nothing is returned when the table is unknown or a record belongs to a
// different kind.
func BuildInserts(table string, records []models.Record, mode Mode) ([]Statement, error) {
	kind, err := models.KindForTable(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTable, table)
	}
	if mode == "" {
		mode = ModeUpsert
	}

	stmts := make([]Statement, 0, len(records))
	for i, rec := range records {
		if rec == nil || rec.Kind() != kind {
			return nil, fmt.Errorf("record %d cannot be written to %s", i, table)
		}

		stmt := Statement{Table: table, RecordID: rec.RecordID(), Mode: mode}
		switch r := rec.(type) {
		case *models.Team:
			stmt.Columns = teamColumns
			stmt.Args = []any{r.ID, r.Number, r.Name}
		case *models.Event:
			stmt.Columns = eventColumns
			stmt.Args = []any{
				r.ID, r.Name, r.Venue, r.Date.Start, r.Date.End, r.Season, r.Type,
				r.Location.Street, r.Location.PostalCode, r.Location.City,
				r.Location.State, r.Location.Country,
			}
		default:
			return nil, fmt.Errorf("record %d has unsupported type %T", i, rec)
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

// SQL renders the statement with $n placeholders; pass Args alongside it
func (s Statement) SQL() string {
	placeholders := make([]string, len(s.Columns))
	for i := range s.Columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return s.render(placeholders)
}

// Literal renders the statement with every value inlined as an escaped
// literal. Used for dry runs and logs.
func (s Statement) Literal() string {
	values := make([]string, len(s.Args))
	for i, arg := range s.Args {
		values[i] = literal(arg)
	}
	return s.render(values)
}

func (s Statement) render(values []string) string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = pq.QuoteIdentifier(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(s.Table), strings.Join(cols, ", "), strings.Join(values, ", "))

	if s.Mode == ModeUpsert {
		sets := make([]string, 0, len(cols))
		for _, c := range cols[1:] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
		sets = append(sets, `"updated_at" = NOW()`)
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", cols[0], strings.Join(sets, ", "))
	}

	return b.String()
}

func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case *int64:
		if val == nil {
			return "NULL"
		}
		return strconv.FormatInt(*val, 10)
	case *string:
		if val == nil {
			return "NULL"
		}
		return pq.QuoteLiteral(*val)
	case *time.Time:
		if val == nil {
			return "NULL"
		}
		return pq.QuoteLiteral(val.UTC().Format(time.RFC3339Nano))
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return pq.QuoteLiteral(val)
	case driver.Valuer:
		inner, err := val.Value()
		if err != nil || inner == nil {
			return "NULL"
		}
		return literal(inner)
	default:
		return pq.QuoteLiteral(fmt.Sprint(val))
	}
}
