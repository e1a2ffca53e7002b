package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynBuffer(t *testing.T) {
	{ // Size and Resize
		db := NewDynBuffer[int](4)
		assert.Equal(t, 4, db.Len())
		assert.Equal(t, []int{0, 0, 0, 0}, db.Cells())
		for i := 0; i < 4; i++ {
			db.Set(i, 10*i)
		}
		db.Resize(2)
		assert.Equal(t, []int{0, 10}, db.Cells())
		db.Resize(3)
		assert.Equal(t, []int{0, 10, 0}, db.Cells())
		db.Size(1)
		assert.Equal(t, []int{0}, db.Cells())
	}
	{ // Resize of a never sized buffer is a programming error
		var db DynBuffer[float64]
		assert.False(t, db.Sized())
		assert.Panics(t, func() { db.Resize(2) })
		db.Size(0)
		assert.NotPanics(t, func() { db.Resize(2) })
		db.Delete()
		assert.Equal(t, 0, db.Len())
		assert.Panics(t, func() { db.Resize(2) })
	}
	{ // Use adopts the slice, Copy is deep
		var db DynBuffer[int]
		cells := []int{3, 5, 7}
		db.Use(cells)
		cells[0] = 1
		assert.Equal(t, 1, db.At(0))
		cp := db.Copy()
		db.Set(1, 99)
		assert.Equal(t, []int{1, 5, 7}, cp.Cells())
		assert.True(t, cp.Sized())
	}
}
