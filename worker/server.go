// Worker node for the query-serving fleet.
// Workers are read replicas: they execute queries against the node-local
// data engine and never forward anything further. A write arriving here is
// assumed to be a replication leg from the manager and is not re-propagated.
package worker

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
	"github.com/sqlfleet/sqlfleet/engine"
)

type Server struct {
	Name string

	engine engine.Engine
}

func NewServer(name string, eng engine.Engine) *Server {
	return &Server{Name: name, engine: eng}
}

// Router builds the worker's HTTP surface. GET / doubles as the liveness
// probe target for latency-based routing.
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

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := common.Log()
	query, ok := common.DecodeQuery(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Execute(query)
	if err != nil {
		log.Error("Query execution failed.",
			zap.String("node", s.Name),
			zap.String("requestId", r.Header.Get(common.HeaderRequestId)),
			zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	env := common.Envelope{HandledBy: s.Name}
	if res.Acknowledged {
		env.Result = common.WriteAck
	} else {
		env.Result = res.Rows
	}
	common.WriteJSON(w, http.StatusOK, env)
	log.Info("Query handled.",
		zap.String("node", s.Name),
		zap.Stringer("kind", common.Classify(query)),
		zap.String("requestId", r.Header.Get(common.HeaderRequestId)))
}
