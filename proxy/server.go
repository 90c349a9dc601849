// Proxy node: the routing core of the fleet.
// The proxy classifies each query, routes writes to the manager, routes
// reads per the active policy, and owns the policy state exposed through
// GET/POST /mode.
package proxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
)

type Server struct {
	Name string

	registry *common.Registry
	policy   *PolicyCell
	client   *http.Client // query forwarding, bounded by the peer
	prober   *http.Client // probe calls, bounded by the probe timeout
}

func NewServer(name string, reg *common.Registry, probeTimeout time.Duration) *Server {
	return &Server{
		Name:     name,
		registry: reg,
		policy:   NewPolicyCell(),
		client:   common.NewHTTPClient(0),
		prober:   common.NewHTTPClient(probeTimeout),
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

// selectorFor maps a policy value to its selection strategy. The policy is
// read exactly once per request, so a concurrent mode change can never mix
// two policies' logic within one decision.
func (s *Server) selectorFor(p common.Policy) selector {
	switch p {
	case common.PolicyRandom:
		return randomWorker{}
	case common.PolicyCustomized:
		return lowestLatency{client: s.prober}
	default:
		return directHit{}
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := common.Log()
	query, ok := common.DecodeQuery(w, r)
	if !ok {
		return
	}
	requestId := r.Header.Get(common.HeaderRequestId)

	var dec Decision
	var err error
	kind := common.Classify(query)
	if kind == common.KindWrite {
		// writes always take the single write path, whatever the policy
		dec, err = directHit{}.Select(s.registry)
	} else {
		dec, err = s.selectorFor(s.policy.Get()).Select(s.registry)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, common.ErrNoReachableWorker) {
			status = http.StatusBadGateway
		}
		log.Error("Routing decision failed.",
			zap.Stringer("kind", kind),
			zap.String("requestId", requestId),
			zap.Error(err))
		common.WriteError(w, status, err.Error())
		return
	}

	log.Info("Routing query.",
		zap.Stringer("kind", kind),
		zap.String("target", dec.Target.Name),
		zap.String("requestId", requestId))

	status, raw, err := common.PostJSON(s.client, dec.Target.URL("/query"),
		common.QueryRequest{Query: query}, requestId)
	if err != nil {
		// no re-selection: policy selection happens once per request
		log.Error("Downstream query failed.",
			zap.String("target", dec.Target.Name),
			zap.String("requestId", requestId),
			zap.Error(err))
		common.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	var env common.Envelope
	if status == http.StatusOK && json.Unmarshal(raw, &env) == nil {
		env.HandledBy = dec.Target.Name
		env.Pings = dec.Pings
		common.WriteJSON(w, status, env)
		return
	}
	// error bodies pass through unchanged
	common.WriteRawJSON(w, status, raw)
}

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, common.ModeResponse{Mode: string(s.policy.Get())})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req common.ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.MsgInvalidMode)
		return
	}
	if err := s.policy.Set(common.Policy(req.Mode)); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.MsgInvalidMode)
		return
	}
	common.Log().Info("Routing policy changed.", zap.String("mode", req.Mode))
	common.WriteJSON(w, http.StatusOK, common.ModeResponse{Mode: req.Mode})
}
