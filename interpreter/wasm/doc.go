// Package wasm hosts an interpreter compiled to WebAssembly (WASI) and drives
// it through the parse/execute contract.
//
// # Overview
//
// A [Runtime] compiles the module once. Every session instantiates it anew,
// so no guest state crosses requests.
//
//	rt, err := wasm.Load(ctx, "interpreter.wasm", wasm.WithMemoryLimit(wasm.MemoryLimit64MB))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	b := bridge.New(rt)
//
// # Guest protocol
//
// The host writes JSON lines to the guest's stdin:
//
//	{"type":"parse","code":"..."}
//	{"type":"exec"}
//
// The guest prints program output on stdout and reports everything else
// with frames on stderr:
//
//	\x00WI_PARSE:ok\x00 or \x00WI_PARSE:fail\x00   parse outcome
//	\x00WI_ERROR:{json}\x00                        one error record
//	\x00WI_META:text\x00                           diagnostic line
//	\x00WI_DONE\x00                                execution finished
//	\x00WI_CALL:{"fn":"kv_get","args":{...}}\x00   host function call
//
// Host calls are answered with one JSON line on stdin, {"data":...} or
// {"error":"..."}. Unframed stderr text is kept as Meta lines.
//
// Cancelling the context given to Parse or Execute closes the instance.
package wasm
