package common

import (
	"encoding/json"
	"net"
	"os"

	"github.com/pkg/errors"
)

// Registry maps logical node names to network endpoints. It is built once
// at startup from the fleet provisioner's output and never mutated
// afterwards, so request handlers read it without locking. Any topology
// change requires a fresh load, i.e. a process restart.
type Registry struct {
	nodes  []Node
	byName map[string]Node
}

// registryFile is the provisioner's on-disk output format.
type registryFile struct {
	Nodes []Node `json:"nodes"`
}

// Roles that must appear exactly once in every registry.
var singletonRoles = []Role{RoleGatekeeper, RoleTrustedHost, RoleProxy, RoleManager}

// NewRegistry validates the provisioner's node list and builds the name
// index. Worker iteration order is the source order of the list.
func NewRegistry(nodes []Node) (*Registry, error) {
	byName := make(map[string]Node, len(nodes))
	roleCount := make(map[Role]int)
	for _, n := range nodes {
		if n.Name == "" {
			return nil, errors.New("registry: node with empty name")
		}
		if _, ok := byName[n.Name]; ok {
			return nil, errors.Errorf("registry: duplicate node name %q", n.Name)
		}
		switch n.Role {
		case RoleGatekeeper, RoleTrustedHost, RoleProxy, RoleManager, RoleWorker:
		default:
			return nil, errors.Errorf("registry: node %q has unknown role %q", n.Name, n.Role)
		}
		if _, _, err := net.SplitHostPort(n.Addr); err != nil {
			return nil, errors.Wrapf(err, "registry: node %q has malformed address %q", n.Name, n.Addr)
		}
		byName[n.Name] = n
		roleCount[n.Role]++
	}
	for _, role := range singletonRoles {
		if roleCount[role] == 0 {
			return nil, errors.Errorf("registry: required role %q is absent", role)
		}
		if roleCount[role] > 1 {
			return nil, errors.Errorf("registry: role %q appears %d times, want exactly one", role, roleCount[role])
		}
	}
	return &Registry{nodes: nodes, byName: byName}, nil
}

// LoadRegistryFile reads the provisioner's JSON node map from disk.
func LoadRegistryFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "registry: read file")
	}
	var f registryFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "registry: parse file")
	}
	return NewRegistry(f.Nodes)
}

// Resolve returns the node registered under the given logical name.
func (r *Registry) Resolve(name string) (Node, error) {
	n, ok := r.byName[name]
	if !ok {
		return Node{}, errors.Wrapf(ErrUnknownNode, "%q", name)
	}
	return n, nil
}

// Lookup returns the single node holding a singleton role.
func (r *Registry) Lookup(role Role) (Node, error) {
	for _, n := range r.nodes {
		if n.Role == role {
			return n, nil
		}
	}
	return Node{}, errors.Wrapf(ErrUnknownNode, "role %q", role)
}

// Workers returns the worker set in registry iteration order.
func (r *Registry) Workers() []Node {
	var workers []Node
	for _, n := range r.nodes {
		if n.Role == RoleWorker {
			workers = append(workers, n)
		}
	}
	return workers
}

// Nodes returns every registered node in registry iteration order.
func (r *Registry) Nodes() []Node {
	return r.nodes
}
