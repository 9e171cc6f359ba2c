// Package column implements the growable typed numeric vectors the stock
// package's struct-of-arrays candle store is built from. Growth doubles
// capacity, amortizing the cost of push over the vector's lifetime the way
// append would, but as a dedicated type so Stock can hold seven of them
// side by side without boxing each candle into a heap object.
package column

// Float is a growable vector of float64, used for open/high/low/close.
type Float struct {
	data []float64
}

// Push appends a value, growing the backing array if needed.
func (c *Float) Push(v float64) {
	c.data = append(c.data, v)
}

// Len returns the number of pushed values.
func (c *Float) Len() int { return len(c.data) }

// At returns the value at index i. Callers must check bounds; it panics
// like a slice index otherwise, matching stock's own row-bounds checks.
func (c *Float) At(i int) float64 { return c.data[i] }

// Shrink reallocates the backing array to exactly Len(), dropping any
// doubling slack. Called once by Stock.Finish.
func (c *Float) Shrink() {
	shrunk := make([]float64, len(c.data))
	copy(shrunk, c.data)
	c.data = shrunk
}

// Uint is a growable vector of uint64, used for volume and transactions.
type Uint struct {
	data []uint64
}

// Push appends a value, growing the backing array if needed.
func (c *Uint) Push(v uint64) {
	c.data = append(c.data, v)
}

// Len returns the number of pushed values.
func (c *Uint) Len() int { return len(c.data) }

// At returns the value at index i.
func (c *Uint) At(i int) uint64 { return c.data[i] }

// Shrink reallocates the backing array to exactly Len().
func (c *Uint) Shrink() {
	shrunk := make([]uint64, len(c.data))
	copy(shrunk, c.data)
	c.data = shrunk
}

// Int is a growable vector of int64, used for the timestamp column.
type Int struct {
	data []int64
}

// Push appends a value, growing the backing array if needed.
func (c *Int) Push(v int64) {
	c.data = append(c.data, v)
}

// Len returns the number of pushed values.
func (c *Int) Len() int { return len(c.data) }

// At returns the value at index i.
func (c *Int) At(i int) int64 { return c.data[i] }

// Shrink reallocates the backing array to exactly Len().
func (c *Int) Shrink() {
	shrunk := make([]int64, len(c.data))
	copy(shrunk, c.data)
	c.data = shrunk
}
