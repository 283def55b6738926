package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// RuntimeInfo describes the ONNX Runtime shared library that will be loaded.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// Well-known install locations tried when no path is configured.
var runtimeCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// DetectRuntime resolves the ORT library path. An explicit path wins, then
// OUTETTS_ORT_LIB, then ORT_LIBRARY_PATH, then the well-known locations.
func DetectRuntime(libraryPath string) (RuntimeInfo, error) {
	path := libraryPath
	if path == "" {
		path = os.Getenv("OUTETTS_ORT_LIB")
	}

	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range runtimeCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := os.Getenv("ORT_VERSION")
	if version == "" {
		version = inferVersionFromPath(path)
	}

	if version == "" {
		version = "unknown"
	}

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return ""
}
