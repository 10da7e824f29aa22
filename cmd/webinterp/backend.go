package main

import (
	"context"
	"fmt"
	"io"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/hostfunc"
	"github.com/caffeineduck/webinterp/internal/config"
	"github.com/caffeineduck/webinterp/interpreter"
	"github.com/caffeineduck/webinterp/interpreter/starlark"
	"github.com/caffeineduck/webinterp/interpreter/wasm"
)

// backend is the configured interpreter factory plus the handles needed to
// retune or release it.
type backend struct {
	factory  interpreter.Factory
	starlark *starlark.Factory
	closer   io.Closer
}

func newBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	host := hostfunc.DefaultRequestConfig()
	host.KV = cfg.Interpreter.Host.KV

	switch cfg.Interpreter.Backend {
	case config.BackendWasm:
		w := cfg.Interpreter.Wasm
		opts := []wasm.Option{wasm.WithHostFunctions(host)}
		if w.DiskCache {
			opts = append(opts, wasm.WithDiskCache(w.CacheDir))
		}
		if w.MemoryLimitPages > 0 {
			opts = append(opts, wasm.WithMemoryLimit(w.MemoryLimitPages))
		}
		rt, err := wasm.Load(ctx, w.ModulePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("load wasm interpreter: %w", err)
		}
		return &backend{factory: rt, closer: rt}, nil

	case config.BackendStarlark:
		f := starlark.New(
			starlark.WithMaxSteps(cfg.Interpreter.MaxSteps),
			starlark.WithHostFunctions(host),
		)
		return &backend{factory: f, starlark: f}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Interpreter.Backend)
	}
}

func (b *backend) bridge(cfg *config.Config, opts ...bridge.Option) *bridge.Bridge {
	opts = append([]bridge.Option{bridge.WithExecutionTimeout(cfg.Interpreter.ExecutionTimeout)}, opts...)
	return bridge.New(b.factory, opts...)
}

// apply updates backend settings that can change at runtime.
func (b *backend) apply(t config.Tunables) {
	if b.starlark != nil {
		b.starlark.SetMaxSteps(t.MaxSteps)
	}
}

func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
