// decl: common data structure declarations

package common

// Role of a node in the fleet. Fixed for the node's lifetime.
type Role string

const (
	RoleGatekeeper  Role = "gatekeeper"
	RoleTrustedHost Role = "trusted_host"
	RoleProxy       Role = "proxy"
	RoleManager     Role = "manager"
	RoleWorker      Role = "worker"
)

// Node is one addressable service instance with a fixed role.
// Immutable after registry load.
type Node struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	Addr string `json:"addr"`
}

// URL builds the node's endpoint for the given path, e.g. n.URL("/query").
func (n Node) URL(path string) string {
	return "http://" + n.Addr + path
}

// Kind is a query's lexical classification. It drives routing only.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
)

func (k Kind) String() string {
	if k == KindWrite {
		return "WRITE"
	}
	return "READ"
}

// Policy is the algorithm the proxy uses to pick a read target.
type Policy string

const (
	PolicyDirectHit  Policy = "DIRECT_HIT"
	PolicyRandom     Policy = "RANDOM"
	PolicyCustomized Policy = "CUSTOMIZED"
)

func (p Policy) Valid() bool {
	switch p {
	case PolicyDirectHit, PolicyRandom, PolicyCustomized:
		return true
	}
	return false
}

// WriteAck is the acknowledgement payload for a successfully executed write.
const WriteAck = "Write query executed successfully"

// PingUnreachable is the probe measurement recorded for a worker that did
// not answer within the probe timeout. Sorts worse than any finite latency.
const PingUnreachable = "unreachable"

// Envelope wraps a query result and identifies which node actually served
// it. Pings is present only for routing decisions that probed the workers;
// Replication is present only on manager write responses.
type Envelope struct {
	HandledBy   string            `json:"handled_by"`
	Result      interface{}       `json:"result"`
	Pings       map[string]string `json:"pings,omitempty"`
	Replication map[string]string `json:"replication,omitempty"`
}

// Wire bodies shared by every node's HTTP surface.
type QueryRequest struct {
	Query string `json:"query"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type ModeResponse struct {
	Mode string `json:"mode"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
