package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
	"github.com/Schera-ole/hawkular-client-cli/internal/tagging"
)

// HawkularConfig is the `hawkular:` block of the config file.
type HawkularConfig struct {
	URL      string `yaml:"url"`
	Tenant   string `yaml:"tenant"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Insecure bool   `yaml:"insecure"`
}

// ApplicationConfig is the `application:` block of the config file.
type ApplicationConfig struct {
	SentryDSN string `yaml:"sentry_dsn"`
}

// File describes the contents of the YAML config file.
type File struct {
	Hawkular    HawkularConfig    `yaml:"hawkular"`
	Application ApplicationConfig `yaml:"application"`
	Rules       []tagging.Rule    `yaml:"rules"`
}

// LoadFile parses the config file at path. A missing file is not an error and
// yields an empty configuration.
func LoadFile(path string) (*File, error) {
	cfg := &File{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: error reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: error parsing config %s: %w", path, err)
	}
	if cfg.Rules == nil {
		cfg.Rules = []tagging.Rule{}
	}
	return cfg, nil
}

// Flags holds connection values given explicitly on the command line.
// Empty strings mean "not given".
type Flags struct {
	URL      string
	Tenant   string
	Token    string
	Username string
	Password string
	Insecure bool
}

// Settings is the fully resolved connection configuration.
type Settings struct {
	URL      string
	Tenant   string
	Token    string
	Username string
	Password string
	Insecure bool
}

// HasToken reports whether token authentication is used.
func (s *Settings) HasToken() bool {
	return s.Token != ""
}

// MissingFieldError is returned by Resolve when a required setting has no value.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing " + e.Field
}

// Is makes every MissingFieldError match ErrConfiguration.
func (e *MissingFieldError) Is(target error) bool {
	return target == internalerrors.ErrConfiguration
}

// Resolve merges flags, the config file and the environment into Settings.
// For every field the first non-empty value wins, in that order.
func Resolve(flags Flags, file *File, getenv func(string) string) (*Settings, error) {
	if file == nil {
		file = &File{}
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	settings := &Settings{
		URL:      flags.URL,
		Tenant:   flags.Tenant,
		Token:    flags.Token,
		Username: flags.Username,
		Password: flags.Password,
		Insecure: flags.Insecure || file.Hawkular.Insecure,
	}

	fileVars := map[*string]string{
		&settings.URL:      file.Hawkular.URL,
		&settings.Tenant:   file.Hawkular.Tenant,
		&settings.Token:    file.Hawkular.Token,
		&settings.Username: file.Hawkular.Username,
		&settings.Password: file.Hawkular.Password,
	}
	envVars := map[*string]string{
		&settings.URL:      EnvURL,
		&settings.Tenant:   EnvTenant,
		&settings.Token:    EnvToken,
		&settings.Username: EnvUsername,
		&settings.Password: EnvPassword,
	}

	for field, value := range fileVars {
		if *field == "" {
			*field = value
		}
	}
	for field, envVar := range envVars {
		if *field == "" {
			*field = getenv(envVar)
		}
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) validate() error {
	if s.URL == "" {
		return &MissingFieldError{Field: "url"}
	}
	if s.Tenant == "" {
		return &MissingFieldError{Field: "tenant"}
	}
	if s.Token == "" && s.Username == "" {
		return &MissingFieldError{Field: "username"}
	}
	if s.Token == "" && s.Password == "" {
		return &MissingFieldError{Field: "password"}
	}
	return nil
}
