package tensor

import (
	"testing"
)

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{3, 3, 4, 8}, 288},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("expected valid shape, got: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("expected error for zero dimension")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestShapePermute(t *testing.T) {
	s := Shape{3, 5, 4, 8}

	got, err := s.Permute([]int{3, 0, 1, 2})
	if err != nil {
		t.Fatalf("Permute failed: %v", err)
	}
	assertEqualShape(t, Shape{8, 3, 5, 4}, got, "Permute [3,0,1,2]")

	if _, err := s.Permute([]int{0, 1, 2}); err == nil {
		t.Error("expected error for wrong permutation length")
	}
	if _, err := s.Permute([]int{0, 1, 2, 2}); err == nil {
		t.Error("expected error for repeated axis")
	}
	if _, err := s.Permute([]int{0, 1, 2, 4}); err == nil {
		t.Error("expected error for out-of-range axis")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Shape{2, 3}, make([]float32, 5)); err == nil {
		t.Error("expected error for data/shape mismatch")
	}
	if _, err := New(Shape{2, 0}, nil); err == nil {
		t.Error("expected error for invalid shape")
	}
}

func TestNewCopiesData(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	tr, err := New(Shape{2, 2}, data)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data[0] = 99
	if tr.Data()[0] != 1 {
		t.Error("tensor aliases the caller's slice")
	}
}

func TestAt(t *testing.T) {
	tr, err := New(Shape{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		row, col int
		want     float32
	}{
		{0, 0, 0},
		{0, 2, 2},
		{1, 0, 3},
		{1, 2, 5},
	}
	for _, tt := range tests {
		if got := tr.At(tt.row, tt.col); got != tt.want {
			t.Errorf("At(%d, %d) = %v, want %v", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestZerosAndFull(t *testing.T) {
	z, err := Zeros(Shape{3})
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	for i, v := range z.Data() {
		if v != 0 {
			t.Errorf("Zeros[%d] = %v, want 0", i, v)
		}
	}

	f, err := Full(Shape{3}, 2.5)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	for i, v := range f.Data() {
		if v != 2.5 {
			t.Errorf("Full[%d] = %v, want 2.5", i, v)
		}
	}
}

// TestTranspose2D checks the transposed element layout against At().
func TestTranspose2D(t *testing.T) {
	tr, err := New(Shape{2, 3}, []float32{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := tr.Transpose([]int{1, 0})
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}

	assertEqualShape(t, Shape{3, 2}, got.Shape(), "transposed shape")
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if tr.At(i, j) != got.At(j, i) {
				t.Errorf("transpose mismatch at (%d, %d)", i, j)
			}
		}
	}
}

// TestTransposeRoundTrip fills a rank-4 tensor with distinct markers,
// permutes it with [3,0,1,2] and back with the inverse permutation, and
// expects the original tensor exactly.
func TestTransposeRoundTrip(t *testing.T) {
	shape := Shape{3, 4, 2, 5}
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(i)
	}
	tr, err := New(shape, data)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fwd, err := tr.Transpose([]int{3, 0, 1, 2})
	if err != nil {
		t.Fatalf("forward transpose failed: %v", err)
	}
	assertEqualShape(t, Shape{5, 3, 4, 2}, fwd.Shape(), "forward shape")

	back, err := fwd.Transpose([]int{1, 2, 3, 0})
	if err != nil {
		t.Fatalf("inverse transpose failed: %v", err)
	}

	if !back.Equal(tr) {
		t.Error("round-trip did not reproduce the original tensor")
	}
}
