package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority_Order(t *testing.T) {
	q := NewPriority[string]()
	q.Push("large", 1<<20)
	q.Push("small", 10)
	q.Push("medium", 4096)

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "small", v)

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "medium", v)

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "large", v)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPriority_TiesKeepInsertionOrder(t *testing.T) {
	q := NewPriority[string]()
	for _, s := range []string{"/a", "/b", "/c", "/d", "/e"} {
		q.Push(s, 7)
	}
	q.Push("/first", 0)

	assert.Equal(t, []string{"/first", "/a", "/b", "/c", "/d", "/e"}, q.Drain())
	assert.Zero(t, q.Len())
}

func TestPriority_Concurrent(t *testing.T) {
	q := NewPriority[int]()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(i, int64(i))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())

	all := q.Drain()
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}
