// Package export serializes a trained network into the weight document
// consumed by the inference engine.
//
// The pipeline per layer:
//
//	materialize parameters -> fold batch norm -> reorder kernel axes
//	-> intern variables and constants -> append a layer record
//
// A Context owns one document and all of its deduplication state:
// variables and constants are interned by the identity of their
// framework object, so shared tensors are emitted once and referenced
// by ID everywhere they appear. Serializers run synchronously in the
// caller's topological order; any error aborts the whole export, since
// a document with missing layers is useless to the engine.
//
// The finished document is JSON:
//
//	{
//	  "layers":    [ {"type", "input", "output", "arguments"}, ... ],
//	  "variables": { "<id>": {"name", "shape"}, ... },
//	  "constants": { "<id>": {"shape", "data"}, ... }
//	}
//
// Constant data is little-endian IEEE 754 binary16, base64-encoded;
// the cast from float32 is an explicit lossy step of the export
// contract. Kernel constants are stored in the engine's
// [out, h, w, in] axis order.
package export
