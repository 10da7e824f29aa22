// Package hostfunc provides host functions callable from interpreted programs.
//
// Host functions are Go functions exposed to submitted code by an interpreter
// backend: as the predeclared host module in Starlark, or as framed call
// messages in the WASM protocol.
//
// # Registry
//
// The [Registry] maps names to [Func] values:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("my_func", func(ctx context.Context, args map[string]any) (any, error) {
//	    return "result", nil
//	})
//
// # Per-request capabilities
//
// [NewRequestRegistry] builds the registry handed to one interpreter session.
// It always provides time_now and, when [RequestConfig].KV is set, a
// key-value store private to that request:
//
//	registry := hostfunc.NewRequestRegistry(hostfunc.DefaultRequestConfig())
//	registry.Call(ctx, "kv_set", map[string]any{"key": "k", "value": 1})
//
// The store is bounded by [KVConfig] and is discarded with the registry, so
// no state is carried between requests.
package hostfunc
