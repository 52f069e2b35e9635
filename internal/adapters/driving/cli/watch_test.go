package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCmd_RequiresParameterSet(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "watch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter-set")
}

func TestWatchCmd_MissingDirectory(t *testing.T) {
	setupTestServices(t)
	_, err := execute(t, "watch", filepath.Join(t.TempDir(), "missing"), "-p", "a.offxml")
	require.Error(t, err)
}

func TestWatchCmd_SubmitsNewDatasets(t *testing.T) {
	est, _, _ := setupTestServices(t)
	dir := t.TempDir()

	resetFlags(rootCmd)
	out := &syncBuffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"watch", dir, "-p", "a.offxml", "--layer", "stored"})
	defer rootCmd.SetArgs(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Watching"))
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "water.json"), []byte("{}"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	require.Eventually(t, func() bool {
		est.mu.Lock()
		defer est.mu.Unlock()
		return len(est.submitted) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Contains(t, out.String(), "water.json -> request req-a")
	assert.Equal(t, []string{"stored"}, est.submitted[0].Layers)
}
