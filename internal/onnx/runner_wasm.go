//go:build js && wasm

package onnx

import (
	"context"
	"fmt"
)

// DefaultAPIVersion is the ORT C API version requested when none is set.
const DefaultAPIVersion = 23

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner is unavailable in js/wasm. Use NewDecoderWithRunner with another
// GraphRunner implementation.
type Runner struct {
	name string
}

// NewRunner always returns an error in js/wasm.
func NewRunner(meta Session, _ RunnerConfig) (*Runner, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable in js/wasm for graph %q (%s)", meta.Name, nodeNames(meta.Inputs))
}

// Run always returns an error in js/wasm.
func (r *Runner) Run(_ context.Context, _ map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable in js/wasm for graph %q", r.name)
}

// Close is a no-op in js/wasm.
func (r *Runner) Close() {}

// Name returns the graph name.
func (r *Runner) Name() string {
	return r.name
}
