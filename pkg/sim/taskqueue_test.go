package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alienczf/cryptobase/pkg/qsbin"
)

func TestPostAtCollisionBump(t *testing.T) {
	q := NewTaskQueue()
	var order []int
	var stamps []qsbin.UnixMicro
	for i := 0; i < 3; i++ {
		i := i
		q.PostAt(10, func() {
			order = append(order, i)
			stamps = append(stamps, q.Now())
		})
	}
	q.RunUntilDone()

	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, []qsbin.UnixMicro{10, 11, 12}, stamps)
}

func TestPostAtClampsPast(t *testing.T) {
	q := NewTaskQueue()
	var second qsbin.UnixMicro
	q.PostAt(100, func() {
		q.PostAt(50, func() { second = q.Now() })
	})
	q.RunUntilDone()

	assert.Equal(t, qsbin.UnixMicro(101), second)
}

func TestRunUntilDoneReentrantOrdering(t *testing.T) {
	q := NewTaskQueue()
	var got []qsbin.UnixMicro
	q.PostAt(10, func() {
		got = append(got, q.Now())
		q.PostAt(15, func() { got = append(got, q.Now()) })
	})
	q.PostAt(20, func() { got = append(got, q.Now()) })
	q.RunUntilDone()

	assert.Equal(t, []qsbin.UnixMicro{10, 15, 20}, got)
	assert.Equal(t, uint64(3), q.Executed())
}

func TestClearRewindsClock(t *testing.T) {
	q := NewTaskQueue()
	q.PostAt(10, func() {})
	q.RunUntilDone()
	assert.Equal(t, qsbin.UnixMicro(10), q.Now())

	q.PostAt(5, func() {})
	assert.Equal(t, 1, q.Len())
	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, qsbin.UnixMicro(0), q.Now())
}
