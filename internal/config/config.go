// Package config loads service configuration from YAML, .env files and
// WEBINTERP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendStarlark = "starlark"
	BackendWasm     = "wasm"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WEBINTERP_"

type Config struct {
	ListenAddr      string            `yaml:"listen_addr"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
	Interpreter     InterpreterConfig `yaml:"interpreter"`
	CORS            CORSConfig        `yaml:"cors"`
	Log             LogConfig         `yaml:"log"`
	Telemetry       TelemetryConfig   `yaml:"telemetry"`
	Metrics         MetricsConfig     `yaml:"metrics"`
}

type InterpreterConfig struct {
	Backend string `yaml:"backend"`
	// ExecutionTimeout bounds program execution. Zero disables the deadline.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	// MaxSteps limits Starlark execution steps. Zero means unlimited.
	MaxSteps uint64     `yaml:"max_steps"`
	Wasm     WasmConfig `yaml:"wasm"`
	Host     HostConfig `yaml:"host"`
}

type WasmConfig struct {
	ModulePath       string `yaml:"module_path"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	DiskCache        bool   `yaml:"disk_cache"`
	CacheDir         string `yaml:"cache_dir"`
}

type HostConfig struct {
	KV bool `yaml:"kv"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		ShutdownTimeout: 10 * time.Second,
		Interpreter: InterpreterConfig{
			Backend:          BackendStarlark,
			ExecutionTimeout: 10 * time.Second,
			Host:             HostConfig{KV: true},
		},
		CORS:      CORSConfig{AllowOrigins: []string{"*"}},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "webinterp", Insecure: true},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if any)
// and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply further overrides.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from WEBINTERP_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	str("BACKEND", &c.Interpreter.Backend)
	dur("EXECUTION_TIMEOUT", &c.Interpreter.ExecutionTimeout)
	if v, ok := get("MAX_STEPS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_STEPS: %w", EnvPrefix, err))
		} else {
			c.Interpreter.MaxSteps = n
		}
	}
	str("WASM_MODULE", &c.Interpreter.Wasm.ModulePath)
	if v, ok := get("WASM_MEMORY_LIMIT_PAGES"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWASM_MEMORY_LIMIT_PAGES: %w", EnvPrefix, err))
		} else {
			c.Interpreter.Wasm.MemoryLimitPages = uint32(n)
		}
	}
	boolean("WASM_DISK_CACHE", &c.Interpreter.Wasm.DiskCache)
	str("WASM_CACHE_DIR", &c.Interpreter.Wasm.CacheDir)
	boolean("HOST_KV", &c.Interpreter.Host.KV)
	if v, ok := get("CORS_ALLOW_ORIGINS"); ok {
		c.CORS.AllowOrigins = splitList(v)
	}
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_PRETTY", &c.Log.Pretty)
	str("SERVICE_NAME", &c.Telemetry.ServiceName)
	str("OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	boolean("OTLP_INSECURE", &c.Telemetry.Insecure)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_PATH", &c.Metrics.Path)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr cannot be empty"))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown_timeout cannot be negative"))
	}

	switch c.Interpreter.Backend {
	case BackendStarlark:
	case BackendWasm:
		if c.Interpreter.Wasm.ModulePath == "" {
			errs = append(errs, errors.New("interpreter.wasm.module_path is required for the wasm backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("interpreter.backend must be %q or %q, got %q",
			BackendStarlark, BackendWasm, c.Interpreter.Backend))
	}
	if c.Interpreter.ExecutionTimeout < 0 {
		errs = append(errs, errors.New("interpreter.execution_timeout cannot be negative"))
	}

	if len(c.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("cors.allow_origins cannot be empty"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}

	return errors.Join(errs...)
}

// Tunables is the subset of the configuration that can change without a
// restart.
type Tunables struct {
	ExecutionTimeout time.Duration
	MaxSteps         uint64
	LogLevel         string
}

func (c *Config) Tunables() Tunables {
	return Tunables{
		ExecutionTimeout: c.Interpreter.ExecutionTimeout,
		MaxSteps:         c.Interpreter.MaxSteps,
		LogLevel:         c.Log.Level,
	}
}

// RestartRequired lists the changed settings that only take effect after a
// restart.
func (c *Config) RestartRequired(next *Config) []string {
	var changed []string
	if c.ListenAddr != next.ListenAddr {
		changed = append(changed, "listen_addr")
	}
	if c.Interpreter.Backend != next.Interpreter.Backend {
		changed = append(changed, "interpreter.backend")
	}
	if c.Interpreter.Wasm != next.Interpreter.Wasm {
		changed = append(changed, "interpreter.wasm")
	}
	if c.Interpreter.Host != next.Interpreter.Host {
		changed = append(changed, "interpreter.host")
	}
	if strings.Join(c.CORS.AllowOrigins, ",") != strings.Join(next.CORS.AllowOrigins, ",") {
		changed = append(changed, "cors")
	}
	if c.Telemetry != next.Telemetry {
		changed = append(changed, "telemetry")
	}
	if c.Metrics != next.Metrics {
		changed = append(changed, "metrics")
	}
	return changed
}
