package worker_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sqlfleet/sqlfleet/common"
	"github.com/sqlfleet/sqlfleet/engine"
	"github.com/sqlfleet/sqlfleet/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	result  *engine.Result
	err     error
	queries []string
}

func (f *fakeEngine) Execute(query string) (*engine.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) Close() error { return nil }

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleRead(t *testing.T) {
	ast := assert.New(t)
	eng := &fakeEngine{result: &engine.Result{Rows: []engine.Row{{"id": 1, "name": "PENELOPE"}}}}
	s := worker.NewServer("worker1", eng)

	rec := postQuery(t, s.Router(), `{"query": "SELECT * FROM actor"}`)
	ast.Equal(http.StatusOK, rec.Code)

	var env common.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	ast.Equal("worker1", env.HandledBy)
	rows, ok := env.Result.([]interface{})
	require.True(t, ok)
	ast.Len(rows, 1)
	ast.Equal([]string{"SELECT * FROM actor"}, eng.queries)
}

func TestHandleWrite(t *testing.T) {
	ast := assert.New(t)
	eng := &fakeEngine{result: &engine.Result{Acknowledged: true, RowsAffected: 1}}
	s := worker.NewServer("worker2", eng)

	rec := postQuery(t, s.Router(), `{"query": "INSERT INTO actor VALUES (1, 'a')"}`)
	ast.Equal(http.StatusOK, rec.Code)

	var env common.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	ast.Equal("worker2", env.HandledBy)
	ast.Equal(common.WriteAck, env.Result)
}

func TestHandleEngineFailure(t *testing.T) {
	ast := assert.New(t)
	eng := &fakeEngine{err: errors.New("no such table: actor")}
	s := worker.NewServer("worker1", eng)

	rec := postQuery(t, s.Router(), `{"query": "SELECT * FROM actor"}`)
	ast.Equal(http.StatusInternalServerError, rec.Code)
	ast.Contains(rec.Body.String(), "no such table")
}

func TestHandleMissingQuery(t *testing.T) {
	ast := assert.New(t)
	s := worker.NewServer("worker1", &fakeEngine{})

	for _, body := range []string{`{}`, `{"query": ""}`, `not json`} {
		rec := postQuery(t, s.Router(), body)
		ast.Equal(http.StatusBadRequest, rec.Code, body)
		ast.JSONEq(`{"error": "No query provided"}`, rec.Body.String(), body)
	}
}

func TestHome(t *testing.T) {
	ast := assert.New(t)
	s := worker.NewServer("worker1", &fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	ast.Equal(http.StatusOK, rec.Code)
	ast.Equal("worker1 instance", rec.Body.String())
}
