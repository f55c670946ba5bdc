package export

import (
	"fmt"

	"github.com/boomerchi/dream-go/internal/graph"
)

// Dense describes one fully-connected layer to serialize. Kernel is
// stored in the trainer's [in, out] order; the engine wants [out, in].
// The bias / batch-norm contract is the same as Conv2D's.
type Dense struct {
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

// SerializeDense folds, reorders and registers one fully-connected
// layer in the context.
func SerializeDense(ctx *Context, spec Dense) error {
	if err := validateParams("Dense", spec.Kernel, spec.Bias, spec.Beta, spec.Gamma, spec.Mean, spec.Variance); err != nil {
		return err
	}
	if spec.Input == nil || spec.Output == nil {
		return &ConfigError{Op: "Dense", Details: "input and output variables are required"}
	}

	kernel, err := spec.Kernel.Eval()
	if err != nil {
		return fmt.Errorf("materialize kernel: %w", err)
	}
	if len(kernel.Shape()) != 2 {
		return &ShapeError{
			Param:   "kernel",
			Got:     kernel.Shape(),
			Details: "Dense kernel must have rank 2",
		}
	}

	// The output-channel axis of an [in, out] kernel.
	channels := kernel.Shape()[1]

	kernel, bias, err := resolveBias(ctx, kernel, 1, channels, spec.Bias, spec.Gamma, spec.Beta, spec.Mean, spec.Variance, spec.Epsilon)
	if err != nil {
		return err
	}

	reordered, err := kernel.Transpose([]int{1, 0})
	if err != nil {
		return fmt.Errorf("convert Dense kernel: %w", err)
	}

	inputID, err := ctx.InternVariable(spec.Input)
	if err != nil {
		return err
	}
	outputID, err := ctx.InternVariable(spec.Output)
	if err != nil {
		return err
	}

	kernelID, err := ctx.InternConstant(spec.Kernel.Handle(), reordered, reordered.Shape())
	if err != nil {
		return err
	}
	biasID, err := ctx.InternConstant(biasSource(spec.Bias, spec.Beta), bias, bias.Shape())
	if err != nil {
		return err
	}

	return ctx.AddLayer(Layer{
		Type:   "Dense",
		Input:  []int{inputID},
		Output: []int{outputID},
		Arguments: map[string]Argument{
			"activation": activationArg(spec.Activation),
			"kernel":     ConstantRef(kernelID),
			"bias":       ConstantRef(biasID),
		},
	})
}
