//go:build windows

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

// Runner is unavailable on windows. Use NewDecoderWithRunner with another
// GraphRunner implementation.
type Runner struct {
	name string
}

// NewRunner always returns an error on windows.
func NewRunner(meta Session, _ RunnerConfig) (*Runner, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for graph %q (%s)", meta.Name, nodeNames(meta.Inputs))
}

// Run always returns an error on windows.
func (r *Runner) Run(_ context.Context, _ map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for graph %q", r.name)
}

// Close is a no-op on windows.
func (r *Runner) Close() {}

// Name returns the graph name.
func (r *Runner) Name() string {
	return r.name
}
