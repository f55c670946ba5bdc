package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/boomerchi/dream-go/internal/tensor"
)

// Layer is one serialized operation. Input and Output reference
// variable IDs; Arguments reference constants or hold inline scalars.
// Layers are append-only and their order is the caller's topological
// order of the computation.
type Layer struct {
	Type      string              `json:"type"`
	Input     []int               `json:"input"`
	Output    []int               `json:"output"`
	Arguments map[string]Argument `json:"arguments"`
}

// VariableMeta is the debug metadata recorded for a variable ID. The ID
// itself is the only payload the engine needs.
type VariableMeta struct {
	Name  string       `json:"name,omitempty"`
	Shape tensor.Shape `json:"shape,omitempty"`
}

// Constant is an embedded immutable tensor. Data holds the values as
// little-endian IEEE 754 binary16; the cast from float32 is an
// explicit, lossy part of the export contract. Shape is the declared
// shape, which for depthwise kernels deliberately differs from the
// buffer's transposed layout (see ConvertKernel).
type Constant struct {
	Shape tensor.Shape `json:"shape"`
	Data  []byte       `json:"data"`
}

// NewConstant casts a tensor to half precision under the given declared
// shape.
func NewConstant(t *tensor.Tensor, declared tensor.Shape) (Constant, error) {
	if t.NumElements() != declared.NumElements() {
		return Constant{}, &ShapeError{
			Param:   "constant",
			Want:    declared,
			Got:     t.Shape(),
			Details: "declared shape does not cover the tensor's elements",
		}
	}
	return Constant{
		Shape: declared.Clone(),
		Data:  EncodeFloat16(t.Data()),
	}, nil
}

// Document is the finalized export artifact: the ordered layer list
// plus the deduplicated variable and constant tables. Table keys are
// decimal IDs.
type Document struct {
	Layers    []Layer                 `json:"layers"`
	Variables map[string]VariableMeta `json:"variables"`
	Constants map[string]Constant     `json:"constants"`
}

// WriteTo encodes the document as JSON.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	if err := enc.Encode(d); err != nil {
		return cw.n, fmt.Errorf("encode document: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Argument is a layer argument: a number, a string, null, a constant
// reference, or a nested mapping of arguments.
//
// Constant references marshal as {"constant": id}; a nested mapping
// marshals as a plain JSON object, so nested argument names must not
// collide with the "constant" key.
type Argument struct {
	kind    argKind
	num     float64
	str     string
	constID int
	nested  map[string]Argument
}

type argKind int

const (
	argNull argKind = iota
	argNumber
	argString
	argConstant
	argNested
)

// Scalar creates a numeric argument.
func Scalar(v float64) Argument {
	return Argument{kind: argNumber, num: v}
}

// String creates a string argument.
func String(s string) Argument {
	return Argument{kind: argString, str: s}
}

// Null creates an explicit null argument.
func Null() Argument {
	return Argument{kind: argNull}
}

// ConstantRef creates a reference to a constant ID.
func ConstantRef(id int) Argument {
	return Argument{kind: argConstant, constID: id}
}

// Nested creates a nested argument mapping.
func Nested(m map[string]Argument) Argument {
	return Argument{kind: argNested, nested: m}
}

// UnmarshalJSON implements json.Unmarshaler. An object with a single
// numeric "constant" key decodes as a constant reference, any other
// object as a nested mapping.
func (a *Argument) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*a = Null()
	case float64:
		*a = Scalar(v)
	case string:
		*a = String(v)
	case map[string]any:
		if id, ok := v["constant"].(float64); ok && len(v) == 1 {
			*a = ConstantRef(int(id))
			return nil
		}
		nested := make(map[string]Argument, len(v))
		for key := range v {
			sub, err := json.Marshal(v[key])
			if err != nil {
				return err
			}
			var arg Argument
			if err := json.Unmarshal(sub, &arg); err != nil {
				return err
			}
			nested[key] = arg
		}
		*a = Nested(nested)
	default:
		return fmt.Errorf("unsupported argument value: %T", raw)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Argument) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case argNull:
		return []byte("null"), nil
	case argNumber:
		return json.Marshal(a.num)
	case argString:
		return json.Marshal(a.str)
	case argConstant:
		return json.Marshal(map[string]int{"constant": a.constID})
	case argNested:
		return json.Marshal(a.nested)
	default:
		return nil, fmt.Errorf("unknown argument kind: %d", a.kind)
	}
}
