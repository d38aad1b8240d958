package model

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogRing_AppendAndLines(t *testing.T) {
	r := NewLogRing(10)
	r.Append("task %s started", "t-1")
	r.Append("fetched %d pages", 3)

	lines := r.Lines()
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "task t-1 started"))
	assert.True(t, strings.HasSuffix(lines[1], "fetched 3 pages"))
}

func TestLogRing_EvictsOldest(t *testing.T) {
	r := NewLogRing(3)
	for i := 0; i < 5; i++ {
		r.Append("line %d", i)
	}

	lines := r.Lines()
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "line 2"))
	assert.True(t, strings.HasSuffix(lines[2], "line 4"))
	assert.Equal(t, 3, r.Len())
}

func TestLogRing_ConcurrentAppend(t *testing.T) {
	r := NewLogRing(50)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Append("goroutine %d", i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
