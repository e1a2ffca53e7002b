package utils

import "fmt"

// DynBuffer is an owned, resizable array of values. The zero value holds no
// storage and has never been sized; Resize on it is a programming error.
type DynBuffer[T any] struct {
	cells []T
	sized bool
}

func NewDynBuffer[T any](n int) *DynBuffer[T] {
	db := &DynBuffer[T]{}
	db.Size(n)
	return db
}

func (db *DynBuffer[T]) Len() int       { return len(db.cells) }
func (db *DynBuffer[T]) Sized() bool    { return db.sized }
func (db *DynBuffer[T]) At(i int) T     { return db.cells[i] }
func (db *DynBuffer[T]) Set(i int, v T) { db.cells[i] = v }

// Cells returns the backing slice, callers must not retain it across a
// Size, Resize, Use or Delete.
func (db *DynBuffer[T]) Cells() []T { return db.cells }

// Size discards any prior storage and allocates n zeroed cells.
func (db *DynBuffer[T]) Size(n int) {
	db.cells = make([]T, n)
	db.sized = true
}

// Resize reallocates to n cells, preserving the overlapping prefix.
func (db *DynBuffer[T]) Resize(n int) {
	if !db.sized {
		panic(fmt.Sprintf("resize to %d of a buffer that was never sized", n))
	}
	cells := make([]T, n)
	copy(cells, db.cells)
	db.cells = cells
}

func (db *DynBuffer[T]) Delete() {
	db.cells = nil
	db.sized = false
}

// Use adopts cells as the buffer storage. The caller gives up ownership.
func (db *DynBuffer[T]) Use(cells []T) {
	db.cells = cells
	db.sized = true
}

// Copy returns a deep copy that shares no storage with db.
func (db *DynBuffer[T]) Copy() (cp DynBuffer[T]) {
	cp.sized = db.sized
	if db.cells != nil {
		cp.cells = make([]T, len(db.cells))
		copy(cp.cells, db.cells)
	}
	return
}
