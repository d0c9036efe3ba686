package plugins

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/orc2timeline/orc2timeline/conf/plugin_data"
	"github.com/orc2timeline/orc2timeline/pluginapi"
)

func init() {
	pluginapi.Register(pluginapi.Registration{
		Name: "BrowsersHistoryToTimeline",
		New:  func() pluginapi.Plugin { return &browsersHistoryPlugin{timestampColumn: loadTimestampMap()} },
	})
}

// browsersHistoryPlugin dumps every row of every table of a browser's
// SQLite history/cookies/downloads database, promoting one column per
// table to the event timestamp via a sidecar table. Grounded on
// BrowsersHistoryToTimeline.py. WAL/SHM sidecar files are skipped, and
// unlike the hive and EVTX plugins this one has no FileHeaderFilter: WAL
// journal files share no common magic with the main database file, so
// filtering by header would also exclude the databases themselves.
type browsersHistoryPlugin struct {
	timestampColumn map[string]string
}

func (p *browsersHistoryPlugin) FileHeaderFilter() []byte { return nil }

func (p *browsersHistoryPlugin) ParseArtefact(ctx pluginapi.Context, path, originalPathHint string) error {
	base := baseName(path)
	if strings.Contains(base, "-shm_") || strings.Contains(base, "-wal_") {
		return nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	replayWAL(db)

	tables, err := listTables(db)
	if err != nil {
		return fmt.Errorf("browsers: listing tables in %s: %w", base, err)
	}

	source := ctx.OriginalPath(base, originalPathHint)
	for _, table := range tables {
		columns, rows, err := dumpTable(db, table)
		if err != nil {
			continue
		}
		tsColumn := p.timestampColumn[table]
		for _, row := range rows {
			ctx.Emit(p.buildEvent(table, columns, tsColumn, row, source))
		}
	}
	return nil
}

func (p *browsersHistoryPlugin) Finalize(ctx pluginapi.Context) error { return nil }

// replayWAL forces a full WAL checkpoint so history recorded in the
// -wal sidecar but not yet committed is visible in the row dump.
func replayWAL(db *sql.DB) {
	db.Exec("PRAGMA wal_checkpoint(FULL);")
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table';")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// dumpTable returns the table's column names in SQL declaration order
// alongside each row, keyed the same way, so callers can walk a row's
// fields in a fixed order instead of ranging over a map.
func dumpTable(db *sql.DB, table string) ([]string, []map[string]interface{}, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q;", table))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var result []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return columns, result, rows.Err()
}

// buildEvent walks row's fields in columns order (the table's SQL
// column order) rather than ranging over row directly, so the
// description is deterministic across runs - Go map iteration order
// is randomized per-run and dict(row).items() in the original is not.
func (p *browsersHistoryPlugin) buildEvent(table string, columns []string, tsColumn string, row map[string]interface{}, source string) pluginapi.Event {
	timestamp := time.Unix(0, 0).UTC()
	var desc strings.Builder
	fmt.Fprintf(&desc, "TableName: %s - ", table)
	for _, column := range columns {
		value := row[column]
		fmt.Fprintf(&desc, "%s: %v - ", column, value)
		if tsColumn != "" && column == tsColumn && value != nil {
			if raw, ok := asFloat(value); ok {
				timestamp = decodeBrowserTimestamp(raw)
			}
		}
	}
	return pluginapi.Event{
		Timestamp:   &timestamp,
		SourceType:  "BrowsersHistory",
		Description: desc.String(),
		Source:      source,
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// decodeBrowserTimestamp mirrors _get_event's threshold heuristic: a
// raw value below one billion is treated as a Unix microsecond
// timestamp, anything larger as a WebKit/Chromium timestamp
// (microseconds since 1601-01-01).
func decodeBrowserTimestamp(raw float64) time.Time {
	if raw < 1_000_000_000 {
		seconds := raw / 1_000_000
		whole, frac := math.Modf(seconds)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC()
	}
	windowsEpoch := time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)
	return windowsEpoch.Add(time.Duration(raw) * time.Microsecond)
}

func loadTimestampMap() map[string]string {
	result := map[string]string{}
	raw, err := plugindata.Read("BrowsersHistoryToTimeline", "timestampmap.json")
	if err != nil {
		return result
	}
	json.Unmarshal(raw, &result)
	return result
}
