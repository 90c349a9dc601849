package common

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is one node's startup configuration, loaded from a YAML file.
// Environment variables prefixed with SQLFLEET_ override file values.
type Config struct {
	Node struct {
		Name       string `mapstructure:"name"`
		ListenAddr string `mapstructure:"listen_addr"`
		LogLevel   string `mapstructure:"log_level"`
	} `mapstructure:"node"`

	Registry struct {
		File      string   `mapstructure:"file"`
		ZkServers []string `mapstructure:"zk_servers"`
		ZkRoot    string   `mapstructure:"zk_root"`
	} `mapstructure:"registry"`

	Engine struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"engine"`

	Probe struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"probe"`

	Replication struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"replication"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("SQLFLEET")

	v.SetDefault("node.listen_addr", ":5000")
	v.SetDefault("node.log_level", "info")
	v.SetDefault("registry.zk_root", ZK_NODES_ROOT)
	v.SetDefault("probe.timeout", 2*time.Second)
	v.SetDefault("replication.timeout", 10*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if c.Node.Name == "" {
		return nil, errors.New("config: node.name is required")
	}
	return &c, nil
}

// LoadRegistry builds the node registry from whichever source the config
// names: a provisioner-written JSON file, or a one-shot ZooKeeper fetch.
func (c *Config) LoadRegistry() (*Registry, error) {
	if len(c.Registry.ZkServers) > 0 {
		return LoadRegistryZk(c.Registry.ZkServers, c.Registry.ZkRoot)
	}
	if c.Registry.File != "" {
		return LoadRegistryFile(c.Registry.File)
	}
	return nil, errors.New("config: no registry source configured")
}
