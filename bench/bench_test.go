// Package bench measures the interpretation pipeline end to end.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
//
// WASM numbers need an interpreter module in WEBINTERP_WASM_MODULE.
package bench

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/hostfunc"
	"github.com/caffeineduck/webinterp/interpreter"
	"github.com/caffeineduck/webinterp/interpreter/interptest"
	"github.com/caffeineduck/webinterp/interpreter/starlark"
	"github.com/caffeineduck/webinterp/interpreter/wasm"
	"github.com/caffeineduck/webinterp/internal/server"
	"github.com/caffeineduck/webinterp/internal/telemetry"
)

const (
	helloProgram       = `print("hello")`
	computationProgram = `
def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)
print(fib(15))
`
	hostProgram = `
for i in range(20):
    host.kv_set(key="k%d" % i, value=i)
print(len(host.kv_keys()))
`
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func runOnce(b testing.TB, br *bridge.Bridge, source string) bridge.Result {
	b.Helper()
	res, err := br.Run(context.Background(), source)
	if err != nil {
		b.Fatal(err)
	}
	if len(res.Response.Error) > 0 {
		b.Fatalf("program failed: %+v", res.Response.Error)
	}
	return res
}

// --- Starlark ---

func BenchmarkStarlark_ColdStart(b *testing.B) {
	for i := 0; i < b.N; i++ {
		runOnce(b, bridge.New(starlark.New()), helloProgram)
	}
}

func BenchmarkStarlark_Hello(b *testing.B) {
	br := bridge.New(starlark.New())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runOnce(b, br, helloProgram)
	}
}

func BenchmarkStarlark_Computation(b *testing.B) {
	br := bridge.New(starlark.New())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runOnce(b, br, computationProgram)
	}
}

func BenchmarkStarlark_HostFunction(b *testing.B) {
	br := bridge.New(starlark.New(starlark.WithHostFunctions(hostfunc.DefaultRequestConfig())))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runOnce(b, br, hostProgram)
	}
}

func BenchmarkStarlark_Parallel(b *testing.B) {
	br := bridge.New(starlark.New())
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := br.Run(context.Background(), helloProgram); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// --- Pipeline overhead ---

func BenchmarkDecode(b *testing.B) {
	payload := bridge.Encode(computationProgram)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bridge.Decode(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBridge_Fake(b *testing.B) {
	br := bridge.New(interptest.NewFactory())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runOnce(b, br, "say hello")
	}
}

func BenchmarkHTTP_Interpret(b *testing.B) {
	srv := server.New(bridge.New(starlark.New()), telemetry.NewMetrics(), zerolog.Nop(),
		server.Config{AllowOrigins: []string{"*"}, MetricsPath: "/metrics"})
	handler := srv.Handler()
	target := "/interpret?code=" + bridge.Encode(helloProgram)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			b.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
	}
}

// --- WASM ---

func wasmModule(tb testing.TB) string {
	tb.Helper()
	path := os.Getenv("WEBINTERP_WASM_MODULE")
	if path == "" {
		tb.Skip("WEBINTERP_WASM_MODULE not set")
	}
	return path
}

func BenchmarkWasm_ColdStart(b *testing.B) {
	path := wasmModule(b)
	for i := 0; i < b.N; i++ {
		rt, err := wasm.Load(context.Background(), path)
		if err != nil {
			b.Fatal(err)
		}
		runOnce(b, bridge.New(rt), helloProgram)
		rt.Close()
	}
}

func BenchmarkWasm_WarmStart(b *testing.B) {
	rt, err := wasm.Load(context.Background(), wasmModule(b))
	if err != nil {
		b.Fatal(err)
	}
	defer rt.Close()
	br := bridge.New(rt)

	runOnce(b, br, helloProgram)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runOnce(b, br, helloProgram)
	}
}

// --- Comparison ---

func TestBackendComparison(t *testing.T) {
	type result struct {
		name string
		cold time.Duration
		warm time.Duration
	}
	var results []result

	measure := func(runs int, fn func()) time.Duration {
		var total time.Duration
		for i := 0; i < runs; i++ {
			start := time.Now()
			fn()
			total += time.Since(start)
		}
		return total / time.Duration(runs)
	}
	const runs = 5

	type backend struct {
		name string
		new  func() (interpreter.Factory, func())
	}
	backends := []backend{
		{"fake (pipeline only)", func() (interpreter.Factory, func()) {
			return interptest.NewFactory(), func() {}
		}},
		{"starlark", func() (interpreter.Factory, func()) {
			return starlark.New(), func() {}
		}},
	}
	if path := os.Getenv("WEBINTERP_WASM_MODULE"); path != "" {
		backends = append(backends, backend{"wasm", func() (interpreter.Factory, func()) {
			rt, err := wasm.Load(context.Background(), path)
			if err != nil {
				t.Fatal(err)
			}
			return rt, func() { rt.Close() }
		}})
	}

	for _, be := range backends {
		source := helloProgram
		if be.name == "fake (pipeline only)" {
			source = "say hello"
		}

		var factory interpreter.Factory
		var closeFn func()
		cold := measure(1, func() {
			factory, closeFn = be.new()
			runOnce(t, bridge.New(factory), source)
		})
		br := bridge.New(factory)
		warm := measure(runs, func() { runOnce(t, br, source) })
		closeFn()

		results = append(results, result{name: be.name, cold: cold, warm: warm})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nPlatform: %s/%s, CPUs: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Fprintf(&sb, "%-22s %12s %12s\n", "Backend", "Cold", "Warm")
	for _, r := range results {
		fmt.Fprintf(&sb, "%-22s %12s %12s\n", r.name, formatDuration(r.cold), formatDuration(r.warm))
	}
	t.Log(sb.String())
}

func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d >= time.Millisecond {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%dµs", d.Microseconds())
}

func TestMemoryUsage(t *testing.T) {
	var m runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&m)
	before := m.Alloc

	br := bridge.New(starlark.New(starlark.WithHostFunctions(hostfunc.DefaultRequestConfig())))
	for i := 0; i < 100; i++ {
		runOnce(t, br, hostProgram)
	}

	runtime.ReadMemStats(&m)
	after := m.Alloc

	runtime.GC()
	runtime.ReadMemStats(&m)
	afterGC := m.Alloc

	t.Logf("Memory before: %d KB", before/1024)
	t.Logf("Memory after 100 runs: %d KB", after/1024)
	t.Logf("Memory after GC: %d KB", afterGC/1024)
}
