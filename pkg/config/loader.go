package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Validate runs struct-tag validation (required fields, ranges, etc.) over
// v, the way the teacher validates every `engine/domain/*/config.go` type.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Merge overlays the non-zero fields of src onto dst in place, the way
// `engine/domain/task.Config.Merge` layers partial overlays over a base
// config.
func Merge(dst, src any) error {
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("config merge failed: %w", err)
	}
	return nil
}

// LoadYAMLFile reads path and unmarshals it into out.
func LoadYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadServerConfig builds a ServerConfig by layering, in increasing
// precedence: built-in defaults, an optional YAML file at yamlPath (skipped
// when empty or missing), then SERVER_* environment variables. The result
// is validated before it's returned.
func LoadServerConfig(yamlPath string) (*ServerConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultServerConfig(), "mapstructure"), nil); err != nil {
		return nil, fmt.Errorf("load default server config: %w", err)
	}

	if yamlPath != "" {
		if _, err := os.Stat(yamlPath); err == nil {
			fromFile := DefaultServerConfig()
			if err := LoadYAMLFile(yamlPath, fromFile); err != nil {
				return nil, err
			}
			if err := k.Load(structs.Provider(fromFile, "mapstructure"), nil); err != nil {
				return nil, fmt.Errorf("overlay server config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", yamlPath, err)
		}
	}

	envProvider := env.Provider("SERVER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SERVER_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load server config env overlay: %w", err)
	}

	cfg := DefaultServerConfig()
	unmarshalConf := koanf.UnmarshalConf{Tag: "mapstructure"}
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("unmarshal server config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
