package engine

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sqlfleet/sqlfleet/common"
)

// SQLiteEngine runs statements against a node-local SQLite database.
type SQLiteEngine struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return &SQLiteEngine{db: db}, nil
}

// Execute runs one statement. The write/read split follows the same lexical
// classification the routing layer uses, so a statement acknowledged here is
// one the proxy would have routed down the write path.
func (e *SQLiteEngine) Execute(query string) (*Result, error) {
	if common.Classify(query) == common.KindWrite {
		res, err := e.db.Exec(query)
		if err != nil {
			return nil, errors.Wrap(err, "execute write")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return &Result{Acknowledged: true, RowsAffected: affected}, nil
	}

	rows, err := e.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "execute read")
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: out}, nil
}

func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}
	out := []Row{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			// []byte columns would JSON-encode as base64
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return out, nil
}
