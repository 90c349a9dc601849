package proxy

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sqlfleet/sqlfleet/common"
)

// Decision is one routing decision: the chosen target, plus the probe
// measurements when the policy probed the workers.
type Decision struct {
	Target common.Node
	Pings  map[string]string
}

// selector picks a read target for one request. Each implementation is one
// routing policy; a request is decided by exactly one of them.
type selector interface {
	Select(reg *common.Registry) (Decision, error)
}

// directHit routes everything to the manager. Also the write path: writes
// never load-balance.
type directHit struct{}

func (directHit) Select(reg *common.Registry) (Decision, error) {
	manager, err := reg.Lookup(common.RoleManager)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Target: manager}, nil
}

// randomWorker picks uniformly over the worker set. The manager is never a
// candidate; an empty worker set is a configuration error, not an implicit
// fallback to the manager.
type randomWorker struct{}

func (randomWorker) Select(reg *common.Registry) (Decision, error) {
	workers := reg.Workers()
	if len(workers) == 0 {
		return Decision{}, common.ErrNoWorkers
	}
	return Decision{Target: workers[rand.Intn(len(workers))]}, nil
}

// lowestLatency probes every worker and picks the fastest responder.
// Unreachable workers sort worse than any finite latency; ties keep
// registry order. The decision always completes with the best of the
// workers that did answer.
type lowestLatency struct {
	client *http.Client // bounded by the probe timeout
}

const unreachable = time.Duration(-1)

func (l lowestLatency) Select(reg *common.Registry) (Decision, error) {
	workers := reg.Workers()
	if len(workers) == 0 {
		return Decision{}, common.ErrNoWorkers
	}

	latencies := make([]time.Duration, len(workers))
	var wg sync.WaitGroup
	for i, worker := range workers {
		wg.Add(1)
		go func(i int, worker common.Node) {
			defer wg.Done()
			latencies[i] = l.probe(worker)
		}(i, worker)
	}
	wg.Wait()

	pings := make(map[string]string, len(workers))
	best := -1
	for i, d := range latencies {
		if d == unreachable {
			pings[workers[i].Name] = common.PingUnreachable
			continue
		}
		pings[workers[i].Name] = d.String()
		if best < 0 || d < latencies[best] {
			best = i
		}
	}
	if best < 0 {
		return Decision{Pings: pings}, errors.WithStack(common.ErrNoReachableWorker)
	}
	return Decision{Target: workers[best], Pings: pings}, nil
}

// probe measures one liveness round trip against the worker's
// identification endpoint.
func (l lowestLatency) probe(worker common.Node) time.Duration {
	start := time.Now()
	resp, err := l.client.Get(worker.URL("/"))
	if err != nil {
		return unreachable
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unreachable
	}
	return time.Since(start)
}
