package export

import (
	"fmt"

	"github.com/boomerchi/dream-go/internal/graph"
	"github.com/boomerchi/dream-go/internal/tensor"
)

// Conv2D describes one convolution to serialize. Kernel is required
// and stored in the trainer's [h, w, in, out] order. Bias and the
// batch-normalization parameters are mutually exclusive: a trained
// layer either carries an explicit bias or is followed by a batch norm
// that folds into one.
type Conv2D struct {
	Input  *graph.Var
	Output *graph.Var

	Kernel graph.Param
	Bias   graph.Param

	Gamma    graph.Param
	Beta     graph.Param
	Mean     graph.Param
	Variance graph.Param
	Epsilon  float64

	Activation string
}

// SerializeConv2D folds, reorders and registers one dense convolution
// as a Layer in the context.
func SerializeConv2D(ctx *Context, spec Conv2D) error {
	return serializeConv(ctx, spec, OpConv2D)
}

// SerializeDepthwiseConv2D registers one depthwise convolution. The
// engine has no depthwise primitive; the layer is emitted as a grouped
// convolution with group_count equal to the input's channel count,
// which is the same operation.
func SerializeDepthwiseConv2D(ctx *Context, spec Conv2D) error {
	return serializeConv(ctx, spec, OpDepthwiseConv2D)
}

func serializeConv(ctx *Context, spec Conv2D, kind OpKind) error {
	// Contract checks come before any materialization.
	if err := validateParams(kind.String(), spec.Kernel, spec.Bias, spec.Beta, spec.Gamma, spec.Mean, spec.Variance); err != nil {
		return err
	}
	if spec.Input == nil || spec.Output == nil {
		return &ConfigError{Op: kind.String(), Details: "input and output variables are required"}
	}

	kernel, err := spec.Kernel.Eval()
	if err != nil {
		return fmt.Errorf("materialize kernel: %w", err)
	}
	if len(kernel.Shape()) != 4 {
		return &ShapeError{
			Param:   "kernel",
			Got:     kernel.Shape(),
			Details: fmt.Sprintf("%s kernel must have rank 4", kind),
		}
	}

	// The normalized channel axis of an [h, w, in, out] kernel: out for
	// a dense convolution, in for depthwise (out == channel multiplier
	// == 1 there).
	channelAxis := 3
	if kind == OpDepthwiseConv2D {
		channelAxis = 2
	}
	channels := kernel.Shape()[channelAxis]

	kernel, bias, err := resolveBias(ctx, kernel, channelAxis, channels, spec.Bias, spec.Gamma, spec.Beta, spec.Mean, spec.Variance, spec.Epsilon)
	if err != nil {
		return err
	}

	reordered, declared, err := ConvertKernel(kernel, kind)
	if err != nil {
		return err
	}

	groupCount := 1
	if kind == OpDepthwiseConv2D {
		groupCount, err = spec.Input.Channels()
		if err != nil {
			return &ConfigError{Op: kind.String(), Details: err.Error()}
		}
	}

	inputID, err := ctx.InternVariable(spec.Input)
	if err != nil {
		return err
	}
	outputID, err := ctx.InternVariable(spec.Output)
	if err != nil {
		return err
	}

	kernelID, err := ctx.InternConstant(spec.Kernel.Handle(), reordered, declared)
	if err != nil {
		return err
	}
	biasID, err := ctx.InternConstant(biasSource(spec.Bias, spec.Beta), bias, bias.Shape())
	if err != nil {
		return err
	}

	return ctx.AddLayer(Layer{
		Type:   "Conv2D",
		Input:  []int{inputID},
		Output: []int{outputID},
		Arguments: map[string]Argument{
			"group_count": Scalar(float64(groupCount)),
			"activation":  activationArg(spec.Activation),
			"kernel":      ConstantRef(kernelID),
			"bias":        ConstantRef(biasID),
		},
	})
}

// validateParams enforces the layer's parameter contract before any
// tensor is materialized.
func validateParams(op string, kernel, bias, beta, gamma, mean, variance graph.Param) error {
	if kernel == nil {
		return &ConfigError{Op: op, Details: "kernel is required"}
	}
	if bias != nil && beta != nil {
		return &ConfigError{Op: op, Details: "batch normalization cannot be used together with a bias"}
	}
	if beta == nil && (gamma != nil || mean != nil || variance != nil) {
		return &ConfigError{Op: op, Details: "batch normalization parameters given without beta"}
	}
	return nil
}

// resolveBias materializes the batch-norm statistics and folds them
// into the kernel, or falls back to the explicit bias, or to zeros
// when the layer has neither.
func resolveBias(ctx *Context, kernel *tensor.Tensor, channelAxis, channels int, biasP, gammaP, betaP, meanP, varianceP graph.Param, epsilon float64) (*tensor.Tensor, *tensor.Tensor, error) {
	if betaP != nil {
		bn := BatchNorm{Epsilon: epsilon}
		var err error
		if gammaP != nil {
			if bn.Gamma, err = gammaP.Eval(); err != nil {
				return nil, nil, fmt.Errorf("materialize gamma: %w", err)
			}
		}
		if bn.Beta, err = betaP.Eval(); err != nil {
			return nil, nil, fmt.Errorf("materialize beta: %w", err)
		}
		if meanP != nil {
			if bn.Mean, err = meanP.Eval(); err != nil {
				return nil, nil, fmt.Errorf("materialize mean: %w", err)
			}
		}
		if varianceP != nil {
			if bn.Variance, err = varianceP.Eval(); err != nil {
				return nil, nil, fmt.Errorf("materialize variance: %w", err)
			}
		}
		return ctx.fold(kernel, channelAxis, bn)
	}

	if biasP != nil {
		bias, err := biasP.Eval()
		if err != nil {
			return nil, nil, fmt.Errorf("materialize bias: %w", err)
		}
		if len(bias.Shape()) != 1 || bias.Shape()[0] != channels {
			return nil, nil, &ShapeError{
				Param: "bias",
				Want:  tensor.Shape{channels},
				Got:   bias.Shape(),
			}
		}
		return kernel, bias, nil
	}

	zero, err := tensor.Zeros(tensor.Shape{channels})
	if err != nil {
		return nil, nil, fmt.Errorf("zero bias: %w", err)
	}
	return kernel, zero, nil
}

// biasSource picks the dedup key for the emitted bias constant: the
// explicit bias parameter, the beta parameter a folded bias derives
// from, or no identity at all for a synthesized zero bias.
func biasSource(bias, beta graph.Param) graph.Handle {
	switch {
	case bias != nil:
		return bias.Handle()
	case beta != nil:
		return beta.Handle()
	default:
		return graph.InvalidHandle
	}
}

func activationArg(name string) Argument {
	if name == "" {
		return Null()
	}
	return String(name)
}
