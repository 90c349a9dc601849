package manager

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sqlfleet/sqlfleet/common"
)

// Replication leg outcomes as recorded in the response envelope.
const (
	replicaOK          = "ok"
	replicaUnreachable = "unreachable"
)

// replicate re-executes a write on every worker, sequentially in registry
// order. Each leg is independent: a failure is recorded and logged but does
// not roll back the local write, stop the remaining legs, or fail the
// request. Workers may therefore transiently diverge; the returned map is
// how that drift stays observable.
func (s *Server) replicate(query string, requestId string) map[string]string {
	log := common.Log()
	workers := s.registry.Workers()
	outcomes := make(map[string]string, len(workers))
	for _, worker := range workers {
		status, _, err := common.PostJSON(s.client, worker.URL("/query"),
			common.QueryRequest{Query: query}, requestId)
		switch {
		case err != nil:
			outcomes[worker.Name] = replicaUnreachable
			log.Warn("Replication leg failed.",
				zap.String("worker", worker.Name),
				zap.String("requestId", requestId),
				zap.Error(err))
		case status != http.StatusOK:
			outcomes[worker.Name] = fmt.Sprintf("status %d", status)
			log.Warn("Replica rejected write.",
				zap.String("worker", worker.Name),
				zap.String("requestId", requestId),
				zap.Int("status", status))
		default:
			outcomes[worker.Name] = replicaOK
			log.Info("Replicated to worker.",
				zap.String("worker", worker.Name),
				zap.String("requestId", requestId))
		}
	}
	return outcomes
}
