package common

import (
	"encoding/json"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"
)

// Default znode under which the fleet provisioner publishes the node map.
const ZK_NODES_ROOT = "/sqlfleet/nodes"

func ConnectToZk(servers []string) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, time.Second*3)
	if err == nil {
		conn.SetLogger(&ZkLoggerAdapter{})
	}
	return conn, err
}

func EnsurePathRecursive(conn *zk.Conn, p string) error {
	// ensure p layer by layer
	dirs := strings.Split(p, "/")
	cp := "/"
	for _, d := range dirs {
		cp = path.Join(cp, d)
		exists, _, err := conn.Exists(cp)
		if err != nil {
			return err
		}
		if !exists {
			_, err = conn.Create(cp, []byte(""), 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

// LoadRegistryZk fetches the provisioner-published node map once and builds
// an immutable registry from it. Each child of root is one node, its payload
// a JSON-encoded Node. Children are read in lexicographic name order so that
// worker iteration order is deterministic across the fleet.
func LoadRegistryZk(servers []string, root string) (*Registry, error) {
	conn, err := ConnectToZk(servers)
	if err != nil {
		return nil, errors.Wrap(err, "registry: connect to zookeeper")
	}
	defer conn.Close()

	children, _, err := conn.Children(root)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: list %s", root)
	}
	sort.Strings(children)

	nodes := make([]Node, 0, len(children))
	for _, child := range children {
		b, _, err := conn.Get(path.Join(root, child))
		if err != nil {
			return nil, errors.Wrapf(err, "registry: get %s", child)
		}
		var n Node
		if err := json.Unmarshal(b, &n); err != nil {
			return nil, errors.Wrapf(err, "registry: parse %s", child)
		}
		nodes = append(nodes, n)
	}
	return NewRegistry(nodes)
}

// PublishRegistryZk writes a node map under root, one znode per node.
// Provisioning tooling calls this once after the fleet comes up.
func PublishRegistryZk(conn *zk.Conn, root string, nodes []Node) error {
	if err := EnsurePathRecursive(conn, root); err != nil {
		return errors.Wrapf(err, "registry: ensure %s", root)
	}
	for _, n := range nodes {
		b, err := json.Marshal(&n)
		if err != nil {
			return errors.Wrapf(err, "registry: marshal %s", n.Name)
		}
		p := path.Join(root, n.Name)
		if _, err := conn.Create(p, b, 0, zk.WorldACL(zk.PermAll)); err != nil {
			if err != zk.ErrNodeExists {
				return errors.Wrapf(err, "registry: create %s", p)
			}
			if _, err := conn.Set(p, b, -1); err != nil {
				return errors.Wrapf(err, "registry: update %s", p)
			}
		}
	}
	return nil
}
