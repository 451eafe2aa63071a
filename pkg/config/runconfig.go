package config

import (
	"penchy/engine/composition"
)

// RunConfig is the Go rendition of original_source's config.py: one file
// naming every node and the control node's own RPC address (spec.md §6's
// SERVER_HOST/SERVER_PORT knobs), uploaded to every node alongside the
// job descriptor so `penchy run` can find both its own NodeSetting and
// where to report results.
type RunConfig struct {
	Server *ServerConfig              `yaml:"server" validate:"required"`
	Nodes  []*composition.NodeSetting `yaml:"nodes" validate:"required,min=1,dive"`
}

// NodesByHost indexes Nodes for JobDescriptor.Build and client lookups.
func (r *RunConfig) NodesByHost() map[string]*composition.NodeSetting {
	byHost := make(map[string]*composition.NodeSetting, len(r.Nodes))
	for _, ns := range r.Nodes {
		byHost[ns.Host] = ns
	}
	return byHost
}

// LoadRunConfig reads and validates a RunConfig YAML file, including each
// NodeSetting's own Validate (struct-tag validation plus its
// at-least-one-of-Password/Keyfile rule, which go-playground/validator's
// struct tags alone can't express).
func LoadRunConfig(path string) (*RunConfig, error) {
	var cfg RunConfig
	if err := LoadYAMLFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server == nil {
		cfg.Server = DefaultServerConfig()
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	for _, ns := range cfg.Nodes {
		if err := ns.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
