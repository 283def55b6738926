package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NodeInfo describes one graph input or output.
type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session names a graph file and its expected inputs and outputs.
type Session struct {
	Name string
	Path string

	Inputs  []NodeInfo
	Outputs []NodeInfo
}

// Node names of the exported WavTokenizer decoder graph.
const (
	CodesInput     = "codes"
	WaveformOutput = "waveform"
)

// WavTokenizerSession returns the session metadata of a WavTokenizer decoder
// graph at path. The file must exist.
func WavTokenizerSession(path string) (Session, error) {
	if strings.TrimSpace(path) == "" {
		return Session{}, errors.New("decoder model path is required")
	}

	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return Session{}, fmt.Errorf("decoder model: %w", err)
	}

	return Session{
		Name: "wavtokenizer_decoder",
		Path: path,
		Inputs: []NodeInfo{
			{Name: CodesInput, DType: "int64", Shape: []any{1, "codes"}},
		},
		Outputs: []NodeInfo{
			{Name: WaveformOutput, DType: "float", Shape: []any{1, 1, "samples"}},
		},
	}, nil
}

// Input looks up an input node by name.
func (s Session) Input(name string) (NodeInfo, bool) {
	return findNode(s.Inputs, name)
}

// Output looks up an output node by name.
func (s Session) Output(name string) (NodeInfo, bool) {
	return findNode(s.Outputs, name)
}

func findNode(nodes []NodeInfo, name string) (NodeInfo, bool) {
	for _, n := range nodes {
		if n.Name == name {
			return n, true
		}
	}

	return NodeInfo{}, false
}

func nodeNames(nodes []NodeInfo) string {
	if len(nodes) == 0 {
		return ""
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}

	return strings.Join(names, ",")
}
