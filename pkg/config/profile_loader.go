package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Profile is the optional YAML operational profile: the healing node pool,
// reaper protection policy, and validator roster hints that do not fit in
// single environment variables.
type Profile struct {
	Name string `yaml:"name" json:"name"`

	// Nodes feed the healing circuit registry.
	Nodes []string `yaml:"nodes,omitempty" json:"nodes,omitempty"`

	// Protection is the reaper's preserve policy.
	Protection ProtectionConfig `yaml:"protection" json:"protection"`

	// Validators names the consensus pool; each entry becomes one local
	// adversarial twin.
	Validators []string `yaml:"validators,omitempty" json:"validators,omitempty"`
}

// ProtectionConfig lists paths the reaper must never collect.
type ProtectionConfig struct {
	Globs   []string `yaml:"globs,omitempty" json:"globs,omitempty"`
	Regexps []string `yaml:"regexps,omitempty" json:"regexps,omitempty"`
}

// DefaultProtection covers the artifacts whose loss is never acceptable:
// entry points, schemas, migrations, and type declarations.
func DefaultProtection() ProtectionConfig {
	return ProtectionConfig{
		Globs: []string{
			"**/index.*",
			"**/main.*",
			"**/migrations/**",
			"**/schema/**",
		},
		Regexps: []string{`\.d\.ts$`, `\.sql$`},
	}
}

// LoadProfile reads and validates a profile YAML.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if _, err := profile.Protection.CompiledRegexps(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return &profile, nil
}

// CompiledRegexps compiles the protection regexps, failing on the first
// invalid pattern.
func (p ProtectionConfig) CompiledRegexps() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(p.Regexps))
	for _, expr := range p.Regexps {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid protection regexp %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}
