// Manager node: the single write path for the fleet.
// The manager executes every query against its local data engine; writes
// are then re-executed on every worker, best effort, so the read replicas
// converge on the manager's state.
package manager

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
	"github.com/sqlfleet/sqlfleet/engine"
)

type Server struct {
	Name string

	engine   engine.Engine
	registry *common.Registry
	client   *http.Client
}

func NewServer(name string, eng engine.Engine, reg *common.Registry, replicationTimeout time.Duration) *Server {
	return &Server{
		Name:     name,
		engine:   eng,
		registry: reg,
		client:   common.NewHTTPClient(replicationTimeout),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(common.RequestId)
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(s.Name + " instance"))
}

// handleQuery executes locally first. The caller's response depends only on
// local execution; replication outcomes are attached as a diagnostic and
// never fail the request.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := common.Log()
	query, ok := common.DecodeQuery(w, r)
	if !ok {
		return
	}
	requestId := r.Header.Get(common.HeaderRequestId)

	res, err := s.engine.Execute(query)
	if err != nil {
		log.Error("Query execution failed.",
			zap.String("node", s.Name),
			zap.String("requestId", requestId),
			zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	env := common.Envelope{HandledBy: s.Name}
	if res.Acknowledged {
		env.Result = common.WriteAck
		env.Replication = s.replicate(query, requestId)
	} else {
		env.Result = res.Rows
	}
	common.WriteJSON(w, http.StatusOK, env)
	log.Info("Query handled.",
		zap.String("node", s.Name),
		zap.Stringer("kind", common.Classify(query)),
		zap.String("requestId", requestId))
}
