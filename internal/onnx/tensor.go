package onnx

import (
	"fmt"
	"math"
	"strings"
)

// TensorDType names the element type of a Tensor.
type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is an immutable host-side tensor exchanged with ONNX graphs.
type Tensor struct {
	dtype TensorDType
	shape []int64
	f32   []float32
	i64   []int64
}

// NewTensor copies data into a tensor of the given shape.
func NewTensor[T int64 | float32](data []T, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}
	if count != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", shape, count, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}
	switch d := any(data).(type) {
	case []float32:
		t.dtype = DTypeFloat32
		t.f32 = append([]float32{}, d...)
	case []int64:
		t.dtype = DTypeInt64
		t.i64 = append([]int64{}, d...)
	}

	return t, nil
}

// NewZeroTensor builds a zero tensor matching a graph node. Symbolic
// dimensions resolve to 1.
func NewZeroTensor(node NodeInfo) (*Tensor, error) {
	dtype, err := canonicalDType(node.DType)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	shape, err := resolveShape(node.Shape)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	count, err := elementCount(shape)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", node.Name, err)
	}

	if dtype == DTypeFloat32 {
		return NewTensor(make([]float32, count), shape)
	}

	return NewTensor(make([]int64, count), shape)
}

func (t *Tensor) DType() TensorDType { return t.dtype }

// Shape returns a copy of the dimensions.
func (t *Tensor) Shape() []int64 { return append([]int64(nil), t.shape...) }

// Len returns the number of elements.
func (t *Tensor) Len() int {
	if t.dtype == DTypeFloat32 {
		return len(t.f32)
	}

	return len(t.i64)
}

// Float32s returns a copy of the elements of a float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.dtype != DTypeFloat32 {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}

	return append([]float32{}, t.f32...), nil
}

// Int64s returns a copy of the elements of an int64 tensor.
func (t *Tensor) Int64s() ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.dtype != DTypeInt64 {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.dtype)
	}

	return append([]int64{}, t.i64...), nil
}

// canonicalDType maps ONNX type spellings such as "tensor(float)" to a
// TensorDType.
func canonicalDType(raw string) (TensorDType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")

	switch normalized {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

// resolveShape turns node metadata dims (numbers or symbolic names) into a
// concrete shape.
func resolveShape(shape []any) ([]int64, error) {
	out := make([]int64, len(shape))
	for i, dim := range shape {
		switch v := dim.(type) {
		case float64:
			if v < 1 || v != math.Trunc(v) {
				return nil, fmt.Errorf("shape[%d]=%v is not a positive integer", i, v)
			}
			out[i] = int64(v)
		case int:
			if v < 1 {
				return nil, fmt.Errorf("shape[%d]=%d is not positive", i, v)
			}
			out[i] = int64(v)
		case int64:
			if v < 1 {
				return nil, fmt.Errorf("shape[%d]=%d is not positive", i, v)
			}
			out[i] = v
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("shape[%d] has empty symbolic dimension", i)
			}
			out[i] = 1
		default:
			return nil, fmt.Errorf("shape[%d] has unsupported type %T", i, dim)
		}
	}

	return out, nil
}

func elementCount(shape []int64) (int, error) {
	count := int64(1)
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("shape[%d]=%d is negative", i, dim)
		}
		if dim > 0 && count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}
