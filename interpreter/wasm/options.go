package wasm

import "github.com/caffeineduck/webinterp/hostfunc"

// Option configures a Runtime at creation time.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 = wazero default (4GB)
	args             []string
	host             hostfunc.RequestConfig
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		args: []string{"interpreter"},
		host: hostfunc.DefaultRequestConfig(),
	}
}

// WithDiskCache enables a persistent compilation cache. Without a directory
// it uses XDG_CACHE_HOME/webinterp or ~/.cache/webinterp.
//
//	wasm.Load(ctx, "interp.wasm", wasm.WithDiskCache())
//	wasm.Load(ctx, "interp.wasm", wasm.WithDiskCache("/tmp/cache"))
func WithDiskCache(dir ...string) Option {
	return func(c *runtimeConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps guest memory in 64KB pages:
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
func WithMemoryLimit(pages uint32) Option {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = pages
	}
}

// WithArgs sets the command line seen by the guest. The first element is the
// program name.
func WithArgs(args ...string) Option {
	return func(c *runtimeConfig) {
		c.args = args
	}
}

// WithHostFunctions sets the capabilities answered over the call frame.
func WithHostFunctions(cfg hostfunc.RequestConfig) Option {
	return func(c *runtimeConfig) {
		c.host = cfg
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
)
