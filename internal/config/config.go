// Package config loads optional custom Role definitions from YAML: read
// the file, unmarshal with gopkg.in/yaml.v3, hand the result to the caller.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cliaimonitor/agentmesh/internal/roles"
)

// RolesConfig is the top-level shape of a roles.yaml file.
type RolesConfig struct {
	Roles []roles.Role `yaml:"roles"`
}

// LoadRolesConfig reads and parses a roles.yaml file. A missing file is
// an error; an empty file yields a RolesConfig with zero roles.
func LoadRolesConfig(path string) (*RolesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RolesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyToManager validates and defines every role in cfg against mgr,
// stopping at the first invalid or rejected definition.
func ApplyToManager(cfg *RolesConfig, mgr *roles.Manager) error {
	for _, r := range cfg.Roles {
		if err := mgr.DefineRole(r); err != nil {
			return fmt.Errorf("role %q: %w", r.RoleID, err)
		}
	}
	return nil
}

// FindRole looks up a role definition by id within a loaded config.
func FindRole(cfg *RolesConfig, roleID string) (roles.Role, bool) {
	for _, r := range cfg.Roles {
		if r.RoleID == roleID {
			return r, true
		}
	}
	return roles.Role{}, false
}
