package wasm

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	guestDir  string
	guestOnce sync.Once
	guestPath string
	guestErr  error
)

var errNoGoTool = errors.New("go tool not found")

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "webinterp-wasm-guest-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create guest dir: %v\n", err)
		os.Exit(1)
	}
	guestDir = dir

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// guestModule returns the scripted guest, compiling testdata/mock.go for
// wasip1 on first use.
func guestModule() (string, error) {
	guestOnce.Do(func() {
		guestPath, guestErr = buildGuest(guestDir)
	})
	return guestPath, guestErr
}

func buildGuest(dir string) (string, error) {
	goTool, err := exec.LookPath("go")
	if err != nil {
		return "", fmt.Errorf("%w: %v", errNoGoTool, err)
	}

	out := filepath.Join(dir, "mock.wasm")
	cmd := exec.Command(goTool, "build", "-o", out, filepath.Join("testdata", "mock.go"))
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("build guest: %w\n%s", err, output)
	}
	return out, nil
}
