package hostfunc

import (
	"context"
	"time"
)

// RequestConfig selects the capabilities given to one interpreted program.
type RequestConfig struct {
	// KV enables the kv_* functions backed by a store private to the request.
	KV       bool
	KVConfig KVConfig

	// Now overrides the clock used by time_now.
	Now func() time.Time
}

func DefaultRequestConfig() RequestConfig {
	return RequestConfig{KV: true, KVConfig: DefaultKVConfig()}
}

// NewRequestRegistry builds a registry for a single request. Every store it
// creates is dropped with the registry, so nothing outlives the request.
func NewRequestRegistry(cfg RequestConfig) *Registry {
	r := NewRegistry()

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	r.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(now().UnixNano()) / 1e9, nil
	})

	if cfg.KV {
		kv := NewKV(cfg.KVConfig)
		r.Register("kv_get", kv.Get)
		r.Register("kv_set", kv.Set)
		r.Register("kv_delete", kv.Delete)
		r.Register("kv_keys", kv.Keys)
	}

	return r
}
