// Package config loads releasekit.toml, the workspace release configuration.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/gruntwork-io/releasekit/internal/backend"
	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/internal/versioning"
)

const (
	DefaultConcurrency = 4
	DefaultUmbrellaTag = "v{version}"
	// UmbrellaTagDisabled turns off the umbrella tag.
	UmbrellaTagDisabled = "none"
)

// Config is the decoded releasekit.toml.
type Config struct {
	Groups     map[string][]string         `toml:"groups"`
	Hooks      map[string][]string         `toml:"hooks"`
	Ecosystems map[string]*EcosystemConfig `toml:"ecosystems" validate:"dive"`
	Packages   map[string]*PackageConfig   `toml:"packages" validate:"dive"`
	// Path is the file the configuration was read from, empty for the defaults.
	Path        string       `toml:"-"`
	UmbrellaTag string       `toml:"umbrella_tag"`
	HookMerge   string       `toml:"hook_merge" validate:"omitempty,oneof=concat replace"`
	Forge       ForgeConfig  `toml:"forge"`
	Exclude     []string     `toml:"exclude"`
	Policy      PolicyConfig `toml:"policy"`
	Poll        PollConfig   `toml:"poll"`
	Concurrency int          `toml:"concurrency" validate:"gte=1,lte=64"`
	FailFast    bool         `toml:"fail_fast"`
}

// PolicyConfig controls version computation.
type PolicyConfig struct {
	TagFormat   map[string]string   `toml:"tag_format" validate:"dive,contains={version}"`
	Cohorts     map[string][]string `toml:"cohorts"`
	Prerelease  string              `toml:"prerelease" validate:"omitempty,alphanum"`
	Force       string              `toml:"force" validate:"omitempty,oneof=patch minor major"`
	MajorOnZero bool                `toml:"major_on_zero"`
	Propagate   bool                `toml:"propagate"`
}

// EcosystemConfig is the [ecosystems.<id>] table.
type EcosystemConfig struct {
	// Enabled defaults to true.
	Enabled     *bool               `toml:"enabled"`
	Hooks       map[string][]string `toml:"hooks"`
	RegistryURL string              `toml:"registry_url" validate:"omitempty,url"`
	RequiredEnv []string            `toml:"required_env"`
	Exclude     []string            `toml:"exclude"`
}

// IsEnabled reports whether the ecosystem takes part in the release.
func (eco *EcosystemConfig) IsEnabled() bool {
	return eco == nil || eco.Enabled == nil || *eco.Enabled
}

// PackageConfig is the [packages.<name>] table.
type PackageConfig struct {
	Hooks map[string][]string `toml:"hooks"`
	// Skip keeps the package out of every release.
	Skip bool `toml:"skip"`
}

// ForgeConfig selects the code hosting platform.
type ForgeConfig struct {
	Kind     string `toml:"kind" validate:"omitempty,oneof=github gitlab"`
	Repo     string `toml:"repo" validate:"omitempty,contains=/"`
	TokenEnv string `toml:"token_env"`
	BaseURL  string `toml:"base_url" validate:"omitempty,url"`
	// Draft creates forge releases as drafts.
	Draft bool `toml:"draft"`
}

// PollConfig bounds how long publish waits for a version to appear on its registry.
type PollConfig struct {
	Interval time.Duration `toml:"interval"`
	Timeout  time.Duration `toml:"timeout"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
		UmbrellaTag: DefaultUmbrellaTag,
		HookMerge:   string(hooks.MergeConcat),
		Forge:       ForgeConfig{Kind: "github"},
		Poll: PollConfig{
			Interval: 5 * time.Second,
			Timeout:  5 * time.Minute,
		},
	}
}

// EnabledEcosystems returns the ecosystems that are not disabled, in canonical order.
func (cfg *Config) EnabledEcosystems() []component.Ecosystem {
	var ecosystems []component.Ecosystem

	for _, eco := range component.AllEcosystems {
		if cfg.Ecosystems[string(eco)].IsEnabled() {
			ecosystems = append(ecosystems, eco)
		}
	}

	return ecosystems
}

// Excludes returns the global exclude patterns followed by the ones of eco.
func (cfg *Config) Excludes(eco component.Ecosystem) []string {
	patterns := slices.Clone(cfg.Exclude)

	if ecoCfg := cfg.Ecosystems[string(eco)]; ecoCfg != nil {
		patterns = append(patterns, ecoCfg.Exclude...)
	}

	return patterns
}

// RequiredEnv returns the environment variables that must be set to publish packages of eco.
func (cfg *Config) RequiredEnv(eco component.Ecosystem) []string {
	if ecoCfg := cfg.Ecosystems[string(eco)]; ecoCfg != nil {
		return ecoCfg.RequiredEnv
	}

	return nil
}

// RegistryURL returns the configured registry override of eco, or an empty string.
func (cfg *Config) RegistryURL(eco component.Ecosystem) string {
	if ecoCfg := cfg.Ecosystems[string(eco)]; ecoCfg != nil {
		return ecoCfg.RegistryURL
	}

	return ""
}

// IsSkipped reports whether the package is excluded from releases by configuration.
func (cfg *Config) IsSkipped(name string) bool {
	pkg := cfg.Packages[name]

	return pkg != nil && pkg.Skip
}

// UmbrellaTagFormat returns the umbrella tag format, or an empty string when disabled.
func (cfg *Config) UmbrellaTagFormat() string {
	if strings.EqualFold(cfg.UmbrellaTag, UmbrellaTagDisabled) {
		return ""
	}

	return cfg.UmbrellaTag
}

// VersionPolicy converts the [policy] table.
func (cfg *Config) VersionPolicy() versioning.Policy {
	policy := versioning.Policy{
		Cohorts:               cfg.Policy.Cohorts,
		Prerelease:            cfg.Policy.Prerelease,
		MajorOnZero:           cfg.Policy.MajorOnZero,
		PropagateToDependents: cfg.Policy.Propagate,
		Concurrency:           cfg.Concurrency,
		Force:                 versioning.Bump(cfg.Policy.Force),
	}

	if len(cfg.Policy.TagFormat) > 0 {
		policy.TagFormats = make(map[component.Ecosystem]string, len(cfg.Policy.TagFormat))

		for eco, format := range cfg.Policy.TagFormat {
			policy.TagFormats[component.Ecosystem(eco)] = format
		}
	}

	return policy
}

// PollOptions converts the [poll] table.
func (cfg *Config) PollOptions() backend.PollOptions {
	return backend.PollOptions{Interval: cfg.Poll.Interval, Timeout: cfg.Poll.Timeout}
}

// HookMergeMode returns the validated merge mode.
func (cfg *Config) HookMergeMode() hooks.MergeMode {
	if cfg.HookMerge == string(hooks.MergeReplace) {
		return hooks.MergeReplace
	}

	return hooks.MergeConcat
}

// HooksFor merges the root, ecosystem and package hooks of one package.
func (cfg *Config) HooksFor(eco component.Ecosystem, name string) hooks.Hooks {
	tiers := []hooks.Hooks{toHooks(cfg.Hooks)}

	if ecoCfg := cfg.Ecosystems[string(eco)]; ecoCfg != nil {
		tiers = append(tiers, toHooks(ecoCfg.Hooks))
	}

	if pkgCfg := cfg.Packages[name]; pkgCfg != nil {
		tiers = append(tiers, toHooks(pkgCfg.Hooks))
	}

	return hooks.Merge(cfg.HookMergeMode(), tiers...)
}

// RootHooks returns the workspace level hooks, used for events that are not tied to a package.
func (cfg *Config) RootHooks() hooks.Hooks {
	return toHooks(cfg.Hooks)
}

func toHooks(raw map[string][]string) hooks.Hooks {
	result := make(hooks.Hooks, len(raw))

	for event, commands := range raw {
		result[hooks.Event(event)] = commands
	}

	return result
}
