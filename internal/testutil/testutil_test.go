package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/store"
)

func TestSequence(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())

	s.Reset()
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_Concurrent(t *testing.T) {
	s := NewSequence()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Next()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), s.Current())
}

func TestMemoryName(t *testing.T) {
	a, b := MemoryName(), MemoryName()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "test-"))
	assert.Equal(t, "file:"+a+"?mode=memory&cache=shared", MemoryDSN(a))
}

func TestNewContainer(t *testing.T) {
	c := NewContainer(t, store.Config{InBinding: "array"})
	assert.Equal(t, "sqlite", c.Dialect().Name())
	assert.Equal(t, dialect.ArrayBind, c.Dialect().InBinding())
	assert.Contains(t, c.Name(), "test-")

	_, err := c.DB().Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	tables, err := c.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, tables)

	other := NewContainer(t, store.Config{})
	tables, err = other.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables, "containers must not share a database")
}
