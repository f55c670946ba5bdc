package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/boomerchi/dream-go/internal/export"
	"github.com/boomerchi/dream-go/internal/graph"
	"github.com/boomerchi/dream-go/internal/tensor"
)

// checkpoint is the dg-export input: trained tensors by name plus an
// ordered layer manifest. The manifest order is the topological order
// the document is serialized in.
type checkpoint struct {
	Tensors map[string]tensorEntry `json:"tensors"`
	Layers  []layerEntry           `json:"layers"`
}

// tensorEntry is one trained tensor: shape plus little-endian float32
// data, base64-encoded in JSON.
type tensorEntry struct {
	Shape tensor.Shape `json:"shape"`
	Data  []byte       `json:"data"`
}

// layerEntry names the tensors and variables of one layer. Variable
// names identify graph edges: two layers mentioning the same name share
// the edge, and shapes are recorded on first mention.
type layerEntry struct {
	Type        string       `json:"type"`
	Input       string       `json:"input"`
	InputShape  tensor.Shape `json:"input_shape,omitempty"`
	Output      string       `json:"output"`
	OutputShape tensor.Shape `json:"output_shape,omitempty"`

	Kernel   string `json:"kernel"`
	Bias     string `json:"bias,omitempty"`
	Gamma    string `json:"gamma,omitempty"`
	Beta     string `json:"beta,omitempty"`
	Mean     string `json:"mean,omitempty"`
	Variance string `json:"variance,omitempty"`

	Epsilon    float64 `json:"epsilon,omitempty"`
	Activation string  `json:"activation,omitempty"`
}

func loadCheckpoint(path string) (*checkpoint, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for export
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var ckpt checkpoint
	if err := json.Unmarshal(raw, &ckpt); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &ckpt, nil
}

// serialize walks the manifest in order and registers each layer with
// the context.
func (c *checkpoint) serialize(ctx *export.Context) error {
	s := &session{
		ckpt:    c,
		builder: graph.NewBuilder(),
		params:  make(map[string]*graph.TensorParam),
		vars:    make(map[string]*graph.Var),
	}

	for i, layer := range c.Layers {
		var err error
		switch layer.Type {
		case "conv2d":
			var spec export.Conv2D
			if spec, err = s.conv2DSpec(layer); err == nil {
				err = export.SerializeConv2D(ctx, spec)
			}
		case "depthwise_conv2d":
			var spec export.Conv2D
			if spec, err = s.conv2DSpec(layer); err == nil {
				err = export.SerializeDepthwiseConv2D(ctx, spec)
			}
		case "dense":
			var spec export.Dense
			if spec, err = s.denseSpec(layer); err == nil {
				err = export.SerializeDense(ctx, spec)
			}
		default:
			err = fmt.Errorf("unknown layer type: %q", layer.Type)
		}
		if err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer.Type, err)
		}
	}
	return nil
}

// session resolves manifest names to graph objects, reusing them so
// that shared tensors and edges keep one identity across layers.
type session struct {
	ckpt    *checkpoint
	builder *graph.Builder
	params  map[string]*graph.TensorParam
	vars    map[string]*graph.Var
}

// param resolves a tensor name to its parameter, or nil for "".
func (s *session) param(name string) (graph.Param, error) {
	if name == "" {
		return nil, nil
	}
	if p, ok := s.params[name]; ok {
		return p, nil
	}

	entry, ok := s.ckpt.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not in checkpoint", name)
	}
	value, err := decodeTensor(entry)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	p := s.builder.Param(value)
	s.params[name] = p
	return p, nil
}

func (s *session) variable(name string, shape tensor.Shape) *graph.Var {
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := s.builder.Var(name, shape)
	s.vars[name] = v
	return v
}

func (s *session) conv2DSpec(layer layerEntry) (export.Conv2D, error) {
	spec := export.Conv2D{
		Input:      s.variable(layer.Input, layer.InputShape),
		Output:     s.variable(layer.Output, layer.OutputShape),
		Epsilon:    layer.Epsilon,
		Activation: layer.Activation,
	}

	var err error
	if spec.Kernel, err = s.param(layer.Kernel); err != nil {
		return export.Conv2D{}, err
	}
	if spec.Bias, err = s.param(layer.Bias); err != nil {
		return export.Conv2D{}, err
	}
	if spec.Gamma, err = s.param(layer.Gamma); err != nil {
		return export.Conv2D{}, err
	}
	if spec.Beta, err = s.param(layer.Beta); err != nil {
		return export.Conv2D{}, err
	}
	if spec.Mean, err = s.param(layer.Mean); err != nil {
		return export.Conv2D{}, err
	}
	if spec.Variance, err = s.param(layer.Variance); err != nil {
		return export.Conv2D{}, err
	}
	return spec, nil
}

func (s *session) denseSpec(layer layerEntry) (export.Dense, error) {
	conv, err := s.conv2DSpec(layer)
	if err != nil {
		return export.Dense{}, err
	}
	return export.Dense{
		Input:      conv.Input,
		Output:     conv.Output,
		Kernel:     conv.Kernel,
		Bias:       conv.Bias,
		Gamma:      conv.Gamma,
		Beta:       conv.Beta,
		Mean:       conv.Mean,
		Variance:   conv.Variance,
		Epsilon:    conv.Epsilon,
		Activation: conv.Activation,
	}, nil
}

// decodeTensor converts a checkpoint entry's little-endian float32
// bytes into a tensor.
func decodeTensor(entry tensorEntry) (*tensor.Tensor, error) {
	if len(entry.Data)%4 != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of 4", len(entry.Data))
	}

	data := make([]float32, len(entry.Data)/4)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(entry.Data[4*i:]))
	}
	return tensor.New(entry.Shape, data)
}
