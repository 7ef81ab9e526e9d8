package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/gruntwork-io/releasekit/internal/component"
	"github.com/gruntwork-io/releasekit/internal/errors"
	"github.com/gruntwork-io/releasekit/internal/groups"
	"github.com/gruntwork-io/releasekit/internal/hooks"
	"github.com/gruntwork-io/releasekit/pkg/log"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration file at path. An empty path returns the defaults.
func Load(l log.Logger, path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, NewConfigError(path, "", "failed to resolve absolute path", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, NewConfigError(absPath, "", "failed to read config file", err)
	}

	cfg, warnings, err := Parse(absPath, data)
	if err != nil {
		return nil, err
	}

	for _, warning := range warnings {
		l.Warnf("%s", warning)
	}

	l.Debugf("Loaded configuration from %s", absPath)

	return cfg, nil
}

// Parse decodes, defaults and validates a configuration. Unknown keys are not an error; they are
// returned as warnings so that files written for newer releases keep working.
func Parse(path string, data []byte) (*Config, []string, error) {
	cfg := &Config{}

	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, nil, formatTOMLError(err, path)
	}

	var warnings []string

	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown key %q in %s (will be ignored)", key.String(), path))
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, nil, NewConfigError(path, "", "failed to apply defaults", err)
	}

	cfg.Path = path

	if err := validate.Struct(cfg); err != nil {
		return nil, nil, formatValidationError(err, path)
	}

	if err := cfg.check(); err != nil {
		return nil, nil, err
	}

	return cfg, warnings, nil
}

// check validates the values that struct tags cannot express.
func (cfg *Config) check() error {
	if err := checkHooks(cfg.Path, "hooks", cfg.Hooks); err != nil {
		return err
	}

	for _, name := range sortedKeys(cfg.Ecosystems) {
		if _, ok := component.ParseEcosystem(name); !ok {
			return NewConfigError(cfg.Path, "ecosystems."+name, "unknown ecosystem", nil)
		}

		if err := checkHooks(cfg.Path, "ecosystems."+name+".hooks", cfg.Ecosystems[name].Hooks); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(cfg.Packages) {
		if err := checkHooks(cfg.Path, "packages."+name+".hooks", cfg.Packages[name].Hooks); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(cfg.Policy.TagFormat) {
		if _, ok := component.ParseEcosystem(name); !ok {
			return NewConfigError(cfg.Path, "policy.tag_format."+name, "unknown ecosystem", nil)
		}
	}

	for _, name := range sortedKeys(cfg.Groups) {
		if _, err := groups.Compile(name, cfg.Groups[name]); err != nil {
			return NewConfigError(cfg.Path, "groups."+name, "invalid pattern", err)
		}
	}

	policy := cfg.VersionPolicy()
	if _, err := policy.CompileCohorts(); err != nil {
		return NewConfigError(cfg.Path, "policy.cohorts", "invalid pattern", err)
	}

	return nil
}

func checkHooks(path, field string, raw map[string][]string) error {
	for _, name := range sortedKeys(raw) {
		if _, ok := hooks.ParseEvent(name); !ok {
			return NewConfigError(path, field+"."+name, "unknown hook event", nil)
		}
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func formatTOMLError(err error, path string) error {
	var parseErr toml.ParseError
	if errors.As(err, &parseErr) {
		return NewConfigError(
			path,
			parseErr.LastKey,
			fmt.Sprintf("TOML syntax error at line %d: %s", parseErr.Position.Line, parseErr.Message),
			err,
		)
	}

	return NewConfigError(path, "", "failed to decode TOML", err)
}

func formatValidationError(err error, path string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return NewConfigError(path, "", "invalid configuration", err)
	}

	fieldErr := validationErrs[0]
	field := strings.TrimPrefix(fieldErr.Namespace(), "Config.")

	msg := fmt.Sprintf("value %v fails the %q rule", fieldErr.Value(), fieldErr.Tag())
	if fieldErr.Param() != "" {
		msg = fmt.Sprintf("value %v fails the %q rule (%s)", fieldErr.Value(), fieldErr.Tag(), fieldErr.Param())
	}

	return NewConfigError(path, field, msg, nil)
}

// ConfigError is a fatal problem with the configuration file.
type ConfigError struct {
	Cause   error
	Path    string
	Field   string
	Message string
}

// NewConfigError returns a ConfigError with a stack trace.
func NewConfigError(path, field, message string, cause error) error {
	return errors.New(&ConfigError{Path: path, Field: field, Message: message, Cause: cause})
}

func (err *ConfigError) Error() string {
	var sb strings.Builder

	sb.WriteString("config error")

	if err.Path != "" {
		sb.WriteString(" in " + err.Path)
	}

	if err.Field != "" {
		sb.WriteString(" at " + err.Field)
	}

	sb.WriteString(": " + err.Message)

	if err.Cause != nil {
		sb.WriteString(": " + err.Cause.Error())
	}

	return sb.String()
}

func (err *ConfigError) Unwrap() error {
	return err.Cause
}

// Hint implements the hinter interface.
func (err *ConfigError) Hint() string {
	if err.Field != "" {
		return fmt.Sprintf("fix %q in %s", err.Field, filepath.Base(err.Path))
	}

	return "check the syntax of " + ConfigFileName
}
