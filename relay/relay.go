// Package relay is the fleet's verbatim forwarding tier. The gatekeeper and
// the trusted host run the same service pointed at different downstreams:
// the gatekeeper is the only node the open network may reach, the trusted
// host the only node allowed to reach the proxy. Neither makes routing
// decisions; they exist for topology isolation.
package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
)

type Server struct {
	Name string

	downstream common.Node
	client     *http.Client
}

func NewServer(name string, downstream common.Node) *Server {
	return &Server{
		Name:       name,
		downstream: downstream,
		client:     common.NewHTTPClient(0),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(common.RequestId)
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/mode", s.handleGetMode).Methods(http.MethodGet)
	r.HandleFunc("/mode", s.handleSetMode).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(s.Name + " instance"))
}

// handleQuery validates the payload, then forwards verbatim. An empty query
// is rejected here and never reaches the downstream.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query, ok := common.DecodeQuery(w, r)
	if !ok {
		return
	}
	requestId := r.Header.Get(common.HeaderRequestId)
	status, raw, err := common.PostJSON(s.client, s.downstream.URL("/query"),
		common.QueryRequest{Query: query}, requestId)
	if err != nil {
		common.Log().Error("Downstream unreachable.",
			zap.String("node", s.Name),
			zap.String("downstream", s.downstream.Name),
			zap.String("requestId", requestId),
			zap.Error(err))
		common.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	common.WriteRawJSON(w, status, raw)
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	requestId := r.Header.Get(common.HeaderRequestId)
	status, raw, err := common.GetJSON(s.client, s.downstream.URL("/mode"), requestId)
	if err != nil {
		common.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	common.WriteRawJSON(w, status, raw)
}

// handleSetMode forwards the requested mode verbatim; validation belongs to
// the proxy, the owner of the policy state.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req common.ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.MsgInvalidMode)
		return
	}
	requestId := r.Header.Get(common.HeaderRequestId)
	status, raw, err := common.PostJSON(s.client, s.downstream.URL("/mode"), req, requestId)
	if err != nil {
		common.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	common.WriteRawJSON(w, status, raw)
}
