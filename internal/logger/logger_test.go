package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, v bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(v)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug(t *testing.T) {
	t.Run("verbose", func(t *testing.T) {
		buf := capture(t, true)
		Debug("processing %s (%d files)", "a.txt", 2)
		assert.Equal(t, "[DEBUG] processing a.txt (2 files)\n", buf.String())
	})

	t.Run("quiet", func(t *testing.T) {
		buf := capture(t, false)
		Debug("processing %s", "a.txt")
		assert.Zero(t, buf.Len())
	})
}

func TestWarn(t *testing.T) {
	buf := capture(t, true)
	Warn("manifest not written: %v", "disk full")
	assert.Equal(t, "[WARN] manifest not written: disk full\n", buf.String())
}

func TestConcurrentUse(t *testing.T) {
	capture(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i // per-iteration copy (go directive < 1.22)
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(i%2 == 0)
			Debug("worker %d", i)
			IsVerbose()
		}()
	}
	wg.Wait()
}
