package background

import (
	"fmt"
	"sync/atomic"
)

// Cursor 当前选中的背景索引，循环前后切换
type Cursor struct {
	index atomic.Int64
	count func() int
}

func newCursor(count func() int) *Cursor {
	return &Cursor{count: count}
}

// Current 返回当前索引，集合缩小后越界的索引归零
func (c *Cursor) Current() int {
	n := c.count()
	i := int(c.index.Load())
	if i < 0 || i >= n {
		return 0
	}
	return i
}

func (c *Cursor) Next() int {
	return c.step(1)
}

func (c *Cursor) Previous() int {
	return c.step(-1)
}

func (c *Cursor) step(delta int) int {
	for {
		old := c.index.Load()
		n := c.count()
		if n <= 1 {
			c.index.CompareAndSwap(old, 0)
			return 0
		}

		cur := int(old)
		if cur < 0 || cur >= n {
			cur = 0
		}
		next := ((cur+delta)%n + n) % n
		if c.index.CompareAndSwap(old, int64(next)) {
			return next
		}
	}
}

// Set 直接选中 index
func (c *Cursor) Set(index int) error {
	n := c.count()
	if index < 0 || index >= n {
		return fmt.Errorf("background index %d out of range [0, %d)", index, n)
	}
	c.index.Store(int64(index))
	return nil
}
