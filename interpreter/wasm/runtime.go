package wasm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/caffeineduck/webinterp/interpreter"
)

// Name identifies this backend.
const Name = "wasm"

// ErrRuntimeClosed is returned by New after Close.
var ErrRuntimeClosed = errors.New("wasm runtime closed")

// Runtime hosts one compiled interpreter module and instantiates it once per
// session. It is safe for concurrent use.
type Runtime struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	cfg      runtimeConfig

	mu     sync.RWMutex
	closed bool
}

// Load reads an interpreter module from path and compiles it.
func Load(ctx context.Context, path string, opts ...Option) (*Runtime, error) {
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	return NewRuntime(ctx, module, opts...)
}

// NewRuntime compiles module. Compilation happens once; sessions only pay
// for instantiation.
func NewRuntime(ctx context.Context, module []byte, opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	r := &Runtime{runtime: rt, cache: cache, cfg: cfg}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		r.Close()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("compile module: %w", err)
	}
	r.compiled = compiled

	return r, nil
}

func (r *Runtime) Name() string {
	return Name
}

// New starts a fresh instance of the interpreter module.
func (r *Runtime) New(ctx context.Context) (interpreter.Interpreter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRuntimeClosed
	}
	return r.startSession(ctx), nil
}

// Close releases the runtime and its compilation cache.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()
	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "webinterp")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "webinterp")
	}
	return filepath.Join(os.TempDir(), "webinterp-cache")
}
