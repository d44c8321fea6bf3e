package fs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/waldb/slotwal/pkg/fs"
)

const testContentHello = "hello durable world"

// TestAtomicWriteFile_SurvivesInjectedFaultsOnRetry exercises the write path
// through [fs.Chaos] fault injection: a first attempt that can fail at open
// or write must never leave a partially-renamed file at the
// destination path, and a retry against the same writer must still succeed.
func TestAtomicWriteFile_SurvivesInjectedFaultsOnRetry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")

	chaosFS := fs.NewChaos(fs.NewReal(), 42, fs.ChaosConfig{
		OpenFailRate:  0.5,
		WriteFailRate: 0.5,
	})
	writer := fs.NewAtomicWriter(chaosFS)

	for {
		err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello))
		if err == nil {
			break
		}

		if exists, _ := chaosFS.Exists(path); exists {
			t.Fatalf("destination %q must not exist after a failed write: %v", path, err)
		}
	}

	got, err := chaosFS.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", string(got), testContentHello)
	}
}
