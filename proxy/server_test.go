package proxy_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sqlfleet/sqlfleet/common"
	"github.com/sqlfleet/sqlfleet/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downstreamNode fakes a manager or worker: it answers the probe endpoint
// and records every query it receives.
type downstreamNode struct {
	name string

	mu      sync.Mutex
	queries []string
}

func (d *downstreamNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte(d.name + " instance"))
		return
	}
	var qr common.QueryRequest
	_ = json.NewDecoder(r.Body).Decode(&qr)
	d.mu.Lock()
	d.queries = append(d.queries, qr.Query)
	d.mu.Unlock()
	common.WriteJSON(w, http.StatusOK, common.Envelope{HandledBy: d.name, Result: "done"})
}

func (d *downstreamNode) seen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queries)
}

func addrOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

type fleet struct {
	proxy   *proxy.Server
	manager *downstreamNode
	workers []*downstreamNode
}

func newFleet(t *testing.T, workerCount int) *fleet {
	t.Helper()
	f := &fleet{manager: &downstreamNode{name: "manager"}}
	managerSrv := httptest.NewServer(f.manager)
	t.Cleanup(managerSrv.Close)

	nodes := []common.Node{
		{Name: "gatekeeper", Role: common.RoleGatekeeper, Addr: "127.0.0.1:1"},
		{Name: "trusted_host", Role: common.RoleTrustedHost, Addr: "127.0.0.1:1"},
		{Name: "proxy", Role: common.RoleProxy, Addr: "127.0.0.1:1"},
		{Name: "manager", Role: common.RoleManager, Addr: addrOf(managerSrv)},
	}
	for i := 0; i < workerCount; i++ {
		w := &downstreamNode{name: "worker" + string(rune('1'+i))}
		srv := httptest.NewServer(w)
		t.Cleanup(srv.Close)
		f.workers = append(f.workers, w)
		nodes = append(nodes, common.Node{Name: w.name, Role: common.RoleWorker, Addr: addrOf(srv)})
	}
	reg, err := common.NewRegistry(nodes)
	require.NoError(t, err)
	f.proxy = proxy.NewServer("proxy", reg, time.Second)
	return f
}

func postJSON(handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func setMode(t *testing.T, handler http.Handler, mode string) {
	t.Helper()
	rec := postJSON(handler, "/mode", common.ModeRequest{Mode: mode})
	require.Equal(t, http.StatusOK, rec.Code)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) common.Envelope {
	t.Helper()
	var env common.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestModeDefaultsToDirectHit(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 1)
	rec := get(f.proxy.Router(), "/mode")
	ast.Equal(http.StatusOK, rec.Code)
	ast.JSONEq(`{"mode": "DIRECT_HIT"}`, rec.Body.String())
}

func TestSetModeRoundTrip(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 1)
	r := f.proxy.Router()

	rec := postJSON(r, "/mode", common.ModeRequest{Mode: "RANDOM"})
	ast.Equal(http.StatusOK, rec.Code)
	ast.JSONEq(`{"mode": "RANDOM"}`, rec.Body.String())

	rec = get(r, "/mode")
	ast.JSONEq(`{"mode": "RANDOM"}`, rec.Body.String())
}

func TestSetModeRejectsInvalid(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 1)
	r := f.proxy.Router()
	setMode(t, r, "RANDOM")

	rec := postJSON(r, "/mode", common.ModeRequest{Mode: "bogus"})
	ast.Equal(http.StatusBadRequest, rec.Code)
	ast.JSONEq(`{"error": "Invalid mode"}`, rec.Body.String())

	// prior mode stays active
	rec = get(r, "/mode")
	ast.JSONEq(`{"mode": "RANDOM"}`, rec.Body.String())
}

func TestDirectHitReadGoesToManager(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 2)
	rec := postJSON(f.proxy.Router(), "/query", common.QueryRequest{Query: "SELECT 1"})
	ast.Equal(http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	ast.Equal("manager", env.HandledBy)
	ast.Equal(1, f.manager.seen())
}

func TestWriteAlwaysGoesToManager(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 2)
	r := f.proxy.Router()

	for _, mode := range []string{"DIRECT_HIT", "RANDOM", "CUSTOMIZED"} {
		setMode(t, r, mode)
		rec := postJSON(r, "/query", common.QueryRequest{Query: "INSERT INTO t VALUES (1)"})
		ast.Equal(http.StatusOK, rec.Code, mode)
		env := decodeEnvelope(t, rec)
		ast.Equal("manager", env.HandledBy, mode)
	}
	ast.Equal(3, f.manager.seen())
	for _, w := range f.workers {
		ast.Zero(w.seen())
	}
}

func TestRandomReadGoesToWorkers(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 2)
	r := f.proxy.Router()
	setMode(t, r, "RANDOM")

	for i := 0; i < 20; i++ {
		rec := postJSON(r, "/query", common.QueryRequest{Query: "SELECT 1"})
		ast.Equal(http.StatusOK, rec.Code)
		env := decodeEnvelope(t, rec)
		ast.Contains([]string{"worker1", "worker2"}, env.HandledBy)
	}
	ast.Zero(f.manager.seen())
	ast.Equal(20, f.workers[0].seen()+f.workers[1].seen())
}

func TestRandomReadWithoutWorkers(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 0)
	r := f.proxy.Router()
	setMode(t, r, "RANDOM")

	rec := postJSON(r, "/query", common.QueryRequest{Query: "SELECT 1"})
	ast.Equal(http.StatusInternalServerError, rec.Code)
	ast.Zero(f.manager.seen())
}

func TestCustomizedReadReturnsPings(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 2)
	r := f.proxy.Router()
	setMode(t, r, "CUSTOMIZED")

	rec := postJSON(r, "/query", common.QueryRequest{Query: "SELECT 1"})
	ast.Equal(http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	ast.Contains([]string{"worker1", "worker2"}, env.HandledBy)
	ast.Len(env.Pings, 2)
	for name, ping := range env.Pings {
		ast.NotEqual(common.PingUnreachable, ping, name)
	}
}

func TestDownstreamFailureIsBadGateway(t *testing.T) {
	ast := assert.New(t)
	manager := &downstreamNode{name: "manager"}
	managerSrv := httptest.NewServer(manager)
	managerAddr := addrOf(managerSrv)
	managerSrv.Close()

	nodes := []common.Node{
		{Name: "gatekeeper", Role: common.RoleGatekeeper, Addr: "127.0.0.1:1"},
		{Name: "trusted_host", Role: common.RoleTrustedHost, Addr: "127.0.0.1:1"},
		{Name: "proxy", Role: common.RoleProxy, Addr: "127.0.0.1:1"},
		{Name: "manager", Role: common.RoleManager, Addr: managerAddr},
	}
	reg, err := common.NewRegistry(nodes)
	require.NoError(t, err)
	p := proxy.NewServer("proxy", reg, time.Second)

	rec := postJSON(p.Router(), "/query", common.QueryRequest{Query: "SELECT 1"})
	ast.Equal(http.StatusBadGateway, rec.Code)
	ast.Contains(rec.Body.String(), "error")
}

func TestMissingQueryNotForwarded(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 1)
	rec := postJSON(f.proxy.Router(), "/query", common.QueryRequest{})
	ast.Equal(http.StatusBadRequest, rec.Code)
	ast.JSONEq(`{"error": "No query provided"}`, rec.Body.String())
	ast.Zero(f.manager.seen())
	ast.Zero(f.workers[0].seen())
}

// Mode flips racing against reads must never break a routing decision.
func TestConcurrentModeChangesAndReads(t *testing.T) {
	ast := assert.New(t)
	f := newFleet(t, 2)
	r := f.proxy.Router()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		modes := []string{"DIRECT_HIT", "RANDOM", "CUSTOMIZED"}
		for i := 0; i < 30; i++ {
			postJSON(r, "/mode", common.ModeRequest{Mode: modes[i%len(modes)]})
		}
	}()
	codes := make(chan int, 30)
	go func() {
		defer wg.Done()
		for i := 0; i < 30; i++ {
			rec := postJSON(r, "/query", common.QueryRequest{Query: "SELECT 1"})
			codes <- rec.Code
		}
	}()
	wg.Wait()
	close(codes)
	for code := range codes {
		ast.Equal(http.StatusOK, code)
	}
}
