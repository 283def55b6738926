// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls Skipf with a clear reason when the named prerequisite is
// absent, so integration tests stay runnable in partial environments.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireDecoderModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// RequireONNXRuntime returns the ONNX Runtime shared library path, or skips
// the test when none can be located. It checks ORT_LIBRARY_PATH, then
// OUTETTS_ORT_LIB, then common system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "OUTETTS_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}
	}

	for _, p := range []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or OUTETTS_ORT_LIB")

	return ""
}

// RequireDecoderModel returns the WavTokenizer decoder graph path from
// OUTETTS_PATHS_DECODER_MODEL, or skips the test.
func RequireDecoderModel(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, "OUTETTS_PATHS_DECODER_MODEL", "decoder model")
}

// RequireTokenizerJSON returns the tokenizer.json path from
// OUTETTS_PATHS_TOKENIZER_JSON, or skips the test.
func RequireTokenizerJSON(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, "OUTETTS_PATHS_TOKENIZER_JSON", "tokenizer.json")
}

func requireFile(tb testing.TB, env, what string) string {
	tb.Helper()

	p := os.Getenv(env)
	if p == "" {
		tb.Skipf("%s not configured; set %s", what, env)
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("%s not found at %s=%q: %v", what, env, p, err)
		return ""
	}

	return p
}
