package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/webinterp/interpreter"
)

// emptyModule is the smallest valid module: no imports, no _start.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func runSource(t *testing.T, rt *Runtime, ctx context.Context, source string) (interpreter.Output, bool) {
	t.Helper()

	session, err := rt.New(ctx)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer session.Close()

	session.Parse(ctx, source)
	ok := session.ParsingOK()
	if ok {
		session.Execute(ctx)
	}

	out, err := session.Streams().Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	return out, ok
}

func TestNewRuntimeRejectsInvalidModule(t *testing.T) {
	_, err := NewRuntime(context.Background(), []byte("not wasm"))
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "compile module") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.wasm"))
	if err == nil {
		t.Fatal("expected read error")
	}
}

func TestGuestExitingBeforeParse(t *testing.T) {
	rt, err := NewRuntime(context.Background(), emptyModule)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	out, ok := runSource(t, rt, context.Background(), "anything")
	if ok {
		t.Fatal("expected parse to fail")
	}
	if len(out.Error) != 1 || !strings.Contains(out.Error[0].Message, "exited before finishing parse") {
		t.Errorf("errors = %+v", out.Error)
	}
	if out.Error[0].Phase != interpreter.PhaseParse {
		t.Errorf("phase = %q", out.Error[0].Phase)
	}
	if len(out.Standard) != 0 {
		t.Errorf("standard = %q", out.Standard)
	}
}

func TestClosedRuntime(t *testing.T) {
	rt, err := NewRuntime(context.Background(), emptyModule, WithMemoryLimit(MemoryLimit16MB))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, err := rt.New(context.Background()); err != ErrRuntimeClosed {
		t.Errorf("expected ErrRuntimeClosed, got %v", err)
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	rt, err := NewRuntime(context.Background(), emptyModule, WithDiskCache(dir))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	if rt.Name() != Name {
		t.Errorf("name = %q", rt.Name())
	}
}

// mockRuntime loads the scripted guest. WEBINTERP_WASM_MODULE or a prebuilt
// testdata/mock.wasm take precedence; otherwise testdata/mock.go is compiled
// once per test binary.
func mockRuntime(t *testing.T) *Runtime {
	t.Helper()

	path := os.Getenv("WEBINTERP_WASM_MODULE")
	if path == "" {
		prebuilt := filepath.Join("testdata", "mock.wasm")
		if _, err := os.Stat(prebuilt); err == nil {
			path = prebuilt
		}
	}
	if path == "" {
		built, err := guestModule()
		if errors.Is(err, errNoGoTool) {
			t.Skipf("cannot build guest module: %v", err)
		}
		if err != nil {
			t.Fatal(err)
		}
		path = built
	}

	rt, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestGuestOutputStreams(t *testing.T) {
	rt := mockRuntime(t)

	out, ok := runSource(t, rt, context.Background(), "say one\nnote from guest\nwarn careful\nsay two")
	if !ok {
		t.Fatalf("parse failed: %+v", out.Error)
	}
	if strings.Join(out.Standard, "|") != "one|two" {
		t.Errorf("standard = %q", out.Standard)
	}
	if len(out.Error) != 0 {
		t.Errorf("errors = %+v", out.Error)
	}
	meta := strings.Join(out.Meta, "|")
	for _, want := range []string{"backend: wasm", "parse: ok", "from guest", "careful", "execute: ok"} {
		if !strings.Contains(meta, want) {
			t.Errorf("meta %q missing %q", out.Meta, want)
		}
	}
}

func TestGuestParseFailure(t *testing.T) {
	rt := mockRuntime(t)

	out, ok := runSource(t, rt, context.Background(), "say fine\nbogus")
	if ok {
		t.Fatal("expected parse failure")
	}
	if len(out.Standard) != 0 {
		t.Errorf("standard = %q", out.Standard)
	}
	if len(out.Error) != 1 || out.Error[0].Line != 2 || out.Error[0].Phase != interpreter.PhaseParse {
		t.Errorf("errors = %+v", out.Error)
	}
}

func TestGuestRuntimeError(t *testing.T) {
	rt := mockRuntime(t)

	out, ok := runSource(t, rt, context.Background(), "say before\nfail boom\nsay after")
	if !ok {
		t.Fatal("parse failed")
	}
	if strings.Join(out.Standard, "|") != "before" {
		t.Errorf("standard = %q", out.Standard)
	}
	if len(out.Error) != 1 || out.Error[0].Message != "boom" || out.Error[0].Phase != interpreter.PhaseExecute {
		t.Errorf("errors = %+v", out.Error)
	}
}

func TestGuestHostCalls(t *testing.T) {
	rt := mockRuntime(t)

	out, _ := runSource(t, rt, context.Background(), "kv answer 42")
	if strings.Join(out.Standard, "|") != "42" {
		t.Errorf("standard = %q errors = %+v", out.Standard, out.Error)
	}
}

func TestGuestDeadline(t *testing.T) {
	rt := mockRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, _ := runSource(t, rt, ctx, "say started\nspin")
	if time.Since(start) > 10*time.Second {
		t.Errorf("deadline not enforced: %v", time.Since(start))
	}
	if len(out.Error) != 1 || !strings.Contains(out.Error[0].Message, "deadline exceeded") {
		t.Errorf("errors = %+v", out.Error)
	}
}

func TestGuestSessionsAreIsolated(t *testing.T) {
	rt := mockRuntime(t)

	first, _ := runSource(t, rt, context.Background(), "say first")
	second, _ := runSource(t, rt, context.Background(), "say second")
	if strings.Join(first.Standard, "|") != "first" || strings.Join(second.Standard, "|") != "second" {
		t.Errorf("outputs leaked: %q %q", first.Standard, second.Standard)
	}
}
