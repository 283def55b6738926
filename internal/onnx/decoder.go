package onnx

import (
	"context"
	"errors"
	"fmt"
)

// GraphRunner executes one ONNX graph. *Runner is the native implementation;
// tests and other platforms can supply their own.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Decoder turns WavTokenizer code sequences into waveforms.
type Decoder struct {
	runner  GraphRunner
	session Session
}

// NewDecoder opens the decoder graph at modelPath with ONNX Runtime.
func NewDecoder(modelPath string, cfg RunnerConfig) (*Decoder, error) {
	meta, err := WavTokenizerSession(modelPath)
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(meta, cfg)
	if err != nil {
		return nil, err
	}

	return NewDecoderWithRunner(runner, meta), nil
}

// NewDecoderWithRunner wraps an already opened graph.
func NewDecoderWithRunner(runner GraphRunner, meta Session) *Decoder {
	return &Decoder{runner: runner, session: meta}
}

// Decode runs the graph on an int64 codes tensor of shape [1, N] and returns
// the float waveform tensor as produced by the graph.
func (d *Decoder) Decode(ctx context.Context, codes *Tensor) (*Tensor, error) {
	if codes == nil {
		return nil, errors.New("decoder: codes tensor is nil")
	}
	if codes.DType() != DTypeInt64 {
		return nil, fmt.Errorf("decoder: codes must be int64, got %s", codes.DType())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs, err := d.runner.Run(ctx, map[string]*Tensor{CodesInput: codes})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	wave, ok := outputs[WaveformOutput]
	if !ok || wave == nil {
		return nil, fmt.Errorf("decoder: missing %q in output", WaveformOutput)
	}
	if wave.DType() != DTypeFloat32 {
		return nil, fmt.Errorf("decoder: %q must be float32, got %s", WaveformOutput, wave.DType())
	}

	return wave, nil
}

// Warmup decodes a zero tensor shaped like the graph input. It surfaces
// session problems before real work starts.
func (d *Decoder) Warmup(ctx context.Context) error {
	node, ok := d.session.Input(CodesInput)
	if !ok {
		return fmt.Errorf("decoder %q has no %q input", d.session.Name, CodesInput)
	}

	codes, err := NewZeroTensor(node)
	if err != nil {
		return err
	}

	_, err = d.Decode(ctx, codes)

	return err
}

// Name returns the underlying graph name.
func (d *Decoder) Name() string { return d.runner.Name() }

// Close releases the graph.
func (d *Decoder) Close() { d.runner.Close() }
