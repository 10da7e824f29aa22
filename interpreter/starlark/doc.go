// Package starlark is an embedded interpreter backend running Starlark
// programs with go.starlark.net.
//
// Parse resolves and compiles the whole program; Execute runs its top level.
// Output of print goes to the Standard stream one line per line of text.
// Syntax and resolution errors are reported with phase "parse", runtime
// errors with phase "execute" together with the innermost source position
// and a backtrace.
//
// Programs see these predeclared modules:
//
//	json   encode, decode, indent
//	math   floor, sqrt, pi and friends
//	time   now, parse_duration, ...
//	host   functions from a per-request hostfunc registry
//
// Host functions take keyword arguments only:
//
//	host.kv_set(key="n", value=1)
//	print(host.kv_get(key="n"))
//
// Execution stops when the context passed to Execute is done or when the
// configured step limit is reached.
package starlark
