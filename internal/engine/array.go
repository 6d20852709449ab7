package engine

import "fmt"

// Array is a real n-dimensional array, first axis slowest.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// NewArray allocates a zeroed array.
func NewArray(shape ...int) Array {
	return Array{Shape: append([]int(nil), shape...), Data: make([]float64, product(shape))}
}

// Vector wraps a 1-D slice without copying.
func Vector(v []float64) Array {
	return Array{Shape: []int{len(v)}, Data: v}
}

// Len returns the element count implied by Shape.
func (a Array) Len() int { return product(a.Shape) }

// Validate checks the data length against the shape.
func (a Array) Validate() error {
	return checkShape(a.Shape, len(a.Data))
}

// Offset returns the flat offset of idx.
func (a Array) Offset(idx ...int) int { return offset(a.Shape, idx) }

// At returns the element at idx.
func (a Array) At(idx ...int) float64 { return a.Data[offset(a.Shape, idx)] }

// Clone returns a deep copy.
func (a Array) Clone() Array {
	return Array{Shape: append([]int(nil), a.Shape...), Data: append([]float64(nil), a.Data...)}
}

// Tensor is a complex n-dimensional array, first axis slowest.
type Tensor struct {
	Shape []int
	Data  []complex128
}

// NewTensor allocates a zeroed tensor.
func NewTensor(shape ...int) Tensor {
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]complex128, product(shape))}
}

// Len returns the element count implied by Shape.
func (t Tensor) Len() int { return product(t.Shape) }

// Validate checks the data length against the shape.
func (t Tensor) Validate() error {
	return checkShape(t.Shape, len(t.Data))
}

// At returns the element at idx.
func (t Tensor) At(idx ...int) complex128 { return t.Data[offset(t.Shape, idx)] }

// Set stores v at idx.
func (t Tensor) Set(v complex128, idx ...int) { t.Data[offset(t.Shape, idx)] = v }

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	return Tensor{Shape: append([]int(nil), t.Shape...), Data: append([]complex128(nil), t.Data...)}
}

func product(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func checkShape(shape []int, n int) error {
	if len(shape) == 0 {
		return fmt.Errorf("%w: empty shape", ErrShape)
	}
	for _, s := range shape {
		if s <= 0 {
			return fmt.Errorf("%w: non-positive extent in %v", ErrShape, shape)
		}
	}
	if product(shape) != n {
		return fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShape, shape, product(shape), n)
	}
	return nil
}

func offset(shape, idx []int) int {
	if len(idx) != len(shape) {
		panic(fmt.Sprintf("engine: index rank %d, array rank %d", len(idx), len(shape)))
	}
	off := 0
	for i, s := range shape {
		if idx[i] < 0 || idx[i] >= s {
			panic(fmt.Sprintf("engine: index %v out of range for shape %v", idx, shape))
		}
		off = off*s + idx[i]
	}
	return off
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
