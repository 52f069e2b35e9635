package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGetUnset(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("backend.type", "remote"))
	require.NoError(t, store.Set("backend.workers", 8))

	v, ok := store.Get("backend.type")
	assert.True(t, ok)
	assert.Equal(t, "remote", v)
	assert.Equal(t, []string{"backend.type", "backend.workers"}, store.Keys())

	require.NoError(t, store.Unset("backend.type"))
	require.NoError(t, store.Unset("missing"))
	_, ok = store.Get("backend.type")
	assert.False(t, ok)
	assert.Equal(t, []string{"backend.workers"}, store.Keys())
}

func TestConfigStore_NoOpPersistence(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("workflows.dir", "/tmp/wf"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	v, _ := store.Get("workflows.dir")
	assert.Equal(t, "/tmp/wf", v)
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_, _ = store.Get(fmt.Sprintf("key.%d", n))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 50)
}
