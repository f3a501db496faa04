package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_UnderCapacity(t *testing.T) {
	b := New[string](3)
	b.Push("a")
	b.Push("b")

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.Equal(t, []string{"a", "b"}, b.Items())
}

func TestBuffer_KeepsMostRecent(t *testing.T) {
	b := New[string](10)
	for i := 1; i <= 25; i++ {
		b.Push(fmt.Sprintf("err-%d", i))
	}

	items := b.Items()
	assert.Len(t, items, 10)
	assert.Equal(t, "err-16", items[0])
	assert.Equal(t, "err-25", items[9])
}

func TestBuffer_Empty(t *testing.T) {
	b := New[int](4)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Items())
	assert.NotNil(t, b.Items())
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{2}, b.Items())
}

func TestBuffer_ItemsIsCopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	items := b.Items()
	items[0] = 99
	assert.Equal(t, []int{1}, b.Items())
}
