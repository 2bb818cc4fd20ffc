package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/resolver"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance for system testing. It returns
// the app, its output buffer and its log buffer.
func SetupAppTest(t *testing.T, cfg Config, loader manifest.Loader, opts ...resolver.Option) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()

	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = resolver.DefaultWorkers
	}
	cfg.LogLevel = "debug"
	validated, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	outBuffer, logBuffer := &SafeBuffer{}, &SafeBuffer{}
	testApp := NewApp(outBuffer, logBuffer, validated, loader, opts...)

	t.Cleanup(func() {
		if os.Getenv("NATIVEBIND_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, outBuffer, logBuffer
}
