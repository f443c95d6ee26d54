package attack

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePopOrdersByPriority(t *testing.T) {
	q := NewQueue()
	q.Push(&Attack{Name: "mask", Priority: PriorityMask})
	q.Push(&Attack{Name: "quick", Priority: PriorityQuickWin})
	q.Push(&Attack{Name: "rules", Priority: PriorityRuleBased})

	first := q.Pop()
	require.NotNil(t, first)
	assert.Equal(t, "quick", first.Name)

	second := q.Pop()
	require.NotNil(t, second)
	assert.Equal(t, "rules", second.Name)

	third := q.Pop()
	require.NotNil(t, third)
	assert.Equal(t, "mask", third.Name)

	assert.Nil(t, q.Pop())
}

func TestQueueTiesBrokenByInsertionOrder(t *testing.T) {
	q := NewQueue()
	q.Push(&Attack{Name: "first", Priority: PriorityQuickWin})
	q.Push(&Attack{Name: "second", Priority: PriorityQuickWin})
	q.Push(&Attack{Name: "third", Priority: PriorityQuickWin})

	assert.Equal(t, "first", q.Pop().Name)
	assert.Equal(t, "second", q.Pop().Name)
	assert.Equal(t, "third", q.Pop().Name)
}

func TestQueueSizeAndSnapshot(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Size())

	q.Push(&Attack{Name: "a", Priority: 40})
	q.Push(&Attack{Name: "b", Priority: 10})
	assert.Equal(t, 2, q.Size())

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Name)
	assert.Equal(t, "a", snap[1].Name)

	// Snapshot must not drain the queue.
	assert.Equal(t, 2, q.Size())
}

func TestQueueConcurrentPushPop(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(&Attack{Name: "concurrent", Priority: float64(n % 5)})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, q.Size())

	count := 0
	for q.Pop() != nil {
		count++
	}
	assert.Equal(t, 100, count)
}
