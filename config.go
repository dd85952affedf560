// Package walrus is the root entry point: a Runtime that glues the binary
// decoder (internal/wasmbin), the lowering pass (internal/wazeroir), the
// module Store (internal/wasm), and the threaded-dispatch interpreter
// (internal/interpreter) into a single API for compiling, instantiating, and
// calling into WebAssembly modules covering this engine's numeric core.
package walrus

import (
	"go.uber.org/zap"

	"github.com/clover2123/walrus/internal/wasmbin"
)

// RuntimeConfig controls Runtime behavior, with the default implementation
// as NewRuntimeConfig.
//
// Note: RuntimeConfig is immutable. Each WithXXX function returns a new
// instance including the corresponding change, mirroring the teacher's own
// RuntimeConfig builder style.
type RuntimeConfig interface {
	// WithFeatureSignExtensionOps enables sign extension instructions
	// ("sign-extension-ops"): i32.extend8_s, i32.extend16_s, i64.extend8_s,
	// i64.extend16_s, i64.extend32_s. Defaults to false, as the feature was
	// not in WebAssembly 1.0 (20191205).
	WithFeatureSignExtensionOps(bool) RuntimeConfig

	// WithFeatureNonTrappingFloatToIntConversion enables the saturating
	// truncation family (trunc_sat_*), which never traps: NaN becomes 0 and
	// out-of-range values clamp to the destination kind's min/max (§4.1).
	// Defaults to false, as the feature was not in WebAssembly 1.0.
	WithFeatureNonTrappingFloatToIntConversion(bool) RuntimeConfig

	// WithFeatureMultiValue allows function types to declare more than one
	// result. Defaults to false, as the feature was not in WebAssembly 1.0.
	WithFeatureMultiValue(bool) RuntimeConfig

	// WithLogger installs a structured logger. Module instantiation,
	// start-function execution, and trap propagation emit diagnostics
	// through it. Defaults to a no-op logger, so the engine stays silent
	// unless a host wires one up.
	WithLogger(*zap.Logger) RuntimeConfig
}

type runtimeConfig struct {
	signExtensionOps                bool
	nonTrappingFloatToIntConversion bool
	multiValue                      bool
	log                             *zap.Logger
}

// NewRuntimeConfig returns the default RuntimeConfig: every feature flag
// this core recognizes off, and a no-op logger.
func NewRuntimeConfig() RuntimeConfig {
	return &runtimeConfig{log: zap.NewNop()}
}

func (c *runtimeConfig) WithFeatureSignExtensionOps(enabled bool) RuntimeConfig {
	ret := *c
	ret.signExtensionOps = enabled
	return &ret
}

func (c *runtimeConfig) WithFeatureNonTrappingFloatToIntConversion(enabled bool) RuntimeConfig {
	ret := *c
	ret.nonTrappingFloatToIntConversion = enabled
	return &ret
}

func (c *runtimeConfig) WithFeatureMultiValue(enabled bool) RuntimeConfig {
	ret := *c
	ret.multiValue = enabled
	return &ret
}

func (c *runtimeConfig) WithLogger(log *zap.Logger) RuntimeConfig {
	ret := *c
	if log == nil {
		log = zap.NewNop()
	}
	ret.log = log
	return &ret
}

// decoderFeatures translates this config's feature flags into the
// wasmbin.Features the binary decoder gates opcode availability with.
func (c *runtimeConfig) decoderFeatures() wasmbin.Features {
	return wasmbin.Features{
		SignExtensionOps:                c.signExtensionOps,
		NonTrappingFloatToIntConversion: c.nonTrappingFloatToIntConversion,
		MultiValue:                      c.multiValue,
	}
}
