package export

import (
	"fmt"
	"math"

	"github.com/boomerchi/dream-go/internal/tensor"
)

// DefaultEpsilon is the variance stabilizer used when BatchNorm.Epsilon
// is left unset.
const DefaultEpsilon = 1e-4

// BatchNorm holds materialized batch-normalization statistics for one
// layer. Gamma may be nil, in which case it defaults to ones. Beta,
// Mean, and Variance are required; all four are per-output-channel
// vectors.
type BatchNorm struct {
	Gamma    *tensor.Tensor
	Beta     *tensor.Tensor
	Mean     *tensor.Tensor
	Variance *tensor.Tensor
	Epsilon  float64
}

func (bn *BatchNorm) epsilon() float64 {
	if bn.Epsilon == 0 {
		return DefaultEpsilon
	}
	return bn.Epsilon
}

// FoldFunc folds batch-normalization statistics into a linear
// operation's kernel and bias. channelAxis is the kernel axis that
// corresponds to the normalized channels. It returns the folded kernel
// and the folded per-channel bias.
//
// Folding is a named strategy so the exporter can switch formulas
// without touching the serializers.
type FoldFunc func(kernel *tensor.Tensor, channelAxis int, bn BatchNorm) (*tensor.Tensor, *tensor.Tensor, error)

// FoldLegacy is the fold formula every existing weight file was
// produced with:
//
//	std   = sqrt(variance + epsilon)
//	K'    = K * (gamma / std)
//	bias' = beta - mean / std
//
// Note that the bias term omits gamma while the kernel term includes
// it. For gamma != 1 this does not match the algebra of
// y = gamma*(conv(x) - mean)/std + beta, which would need
// bias' = beta - gamma*mean/std; see FoldCorrected. The engine's
// existing weight files were produced with this formula, so it stays
// the default and must not be changed in place.
var FoldLegacy FoldFunc = func(kernel *tensor.Tensor, channelAxis int, bn BatchNorm) (*tensor.Tensor, *tensor.Tensor, error) {
	return fold(kernel, channelAxis, bn, false)
}

// FoldCorrected applies the algebraically exact fold,
// bias' = beta - gamma*mean/std. Output is incompatible with weight
// files produced by FoldLegacy whenever gamma != 1.
var FoldCorrected FoldFunc = func(kernel *tensor.Tensor, channelAxis int, bn BatchNorm) (*tensor.Tensor, *tensor.Tensor, error) {
	return fold(kernel, channelAxis, bn, true)
}

// FoldByName resolves a strategy name to a FoldFunc.
func FoldByName(name string) (FoldFunc, error) {
	switch name {
	case "legacy":
		return FoldLegacy, nil
	case "corrected":
		return FoldCorrected, nil
	default:
		return nil, fmt.Errorf("unknown fold strategy: %q", name)
	}
}

func fold(kernel *tensor.Tensor, channelAxis int, bn BatchNorm, scaleBiasByGamma bool) (*tensor.Tensor, *tensor.Tensor, error) {
	shape := kernel.Shape()
	if channelAxis < 0 || channelAxis >= len(shape) {
		return nil, nil, &ShapeError{
			Param:   "kernel",
			Got:     shape,
			Details: fmt.Sprintf("channel axis %d out of range", channelAxis),
		}
	}
	channels := shape[channelAxis]

	if bn.Beta == nil || bn.Mean == nil || bn.Variance == nil {
		return nil, nil, &ConfigError{Details: "batch normalization requires beta, mean and variance"}
	}

	gamma, err := channelVector(bn.Gamma, "gamma", channels, true)
	if err != nil {
		return nil, nil, err
	}
	beta, err := channelVector(bn.Beta, "beta", channels, false)
	if err != nil {
		return nil, nil, err
	}
	mean, err := channelVector(bn.Mean, "mean", channels, false)
	if err != nil {
		return nil, nil, err
	}
	variance, err := channelVector(bn.Variance, "variance", channels, false)
	if err != nil {
		return nil, nil, err
	}

	eps := bn.epsilon()
	if eps <= 0 {
		return nil, nil, &ConfigError{Details: fmt.Sprintf("epsilon must be positive, got %v", eps)}
	}

	std := make([]float64, channels)
	for c := 0; c < channels; c++ {
		std[c] = math.Sqrt(float64(variance[c]) + eps)
	}

	// Scale each output channel's kernel slice by gamma/std via
	// broadcasting over channelAxis.
	stride := shape.ComputeStrides()[channelAxis]
	src := kernel.Data()
	folded := make([]float32, len(src))
	for i, v := range src {
		c := (i / stride) % channels
		folded[i] = v * float32(float64(gamma[c])/std[c])
	}

	foldedKernel, err := tensor.New(shape, folded)
	if err != nil {
		return nil, nil, fmt.Errorf("fold kernel: %w", err)
	}

	bias := make([]float32, channels)
	for c := 0; c < channels; c++ {
		m := float64(mean[c]) / std[c]
		if scaleBiasByGamma {
			m *= float64(gamma[c])
		}
		bias[c] = beta[c] - float32(m)
	}

	foldedBias, err := tensor.New(tensor.Shape{channels}, bias)
	if err != nil {
		return nil, nil, fmt.Errorf("fold bias: %w", err)
	}

	return foldedKernel, foldedBias, nil
}

// channelVector validates a per-channel parameter and returns its data.
// A nil tensor is allowed only when ones is set, in which case a vector
// of ones is substituted.
func channelVector(t *tensor.Tensor, name string, channels int, ones bool) ([]float32, error) {
	if t == nil {
		if !ones {
			return nil, &ConfigError{Details: fmt.Sprintf("missing required parameter %q", name)}
		}
		v := make([]float32, channels)
		for i := range v {
			v[i] = 1
		}
		return v, nil
	}

	if len(t.Shape()) != 1 || t.Shape()[0] != channels {
		return nil, &ShapeError{
			Param: name,
			Want:  tensor.Shape{channels},
			Got:   t.Shape(),
		}
	}
	return t.Data(), nil
}
