// Package doctor provides environment preflight checks for outetts.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check. Nil funcs and
// empty paths skip their check.
type Config struct {
	// TokenizerJSON is the tokenizer.json path.
	TokenizerJSON string
	// TokenizerModel is the optional SentencePiece fallback model path.
	TokenizerModel string
	// DecoderModel is the WavTokenizer decoder graph path.
	DecoderModel string
	// SpeakerFiles are the speaker profiles listed in the manifest.
	SpeakerFiles []string

	// ORTVersion reports the ONNX Runtime library version ("unknown" when it
	// cannot be inferred).
	ORTVersion VersionFunc
	// ORTAPIVersion is the C API version the decoder will request.
	ORTAPIVersion uint32
	// SkipRuntime skips the ONNX Runtime and decoder checks.
	SkipRuntime bool

	// ProbeTokenizer loads the tokenizer and builds the audio token map,
	// returning a short summary.
	ProbeTokenizer func() (string, error)
	// WarmupDecoder loads the decoder and runs it once.
	WarmupDecoder func() error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

type checker struct {
	w   io.Writer
	res *Result
}

func (c checker) pass(format string, args ...any) {
	fmt.Fprintf(c.w, "%s "+format+"\n", append([]any{PassMark}, args...)...)
}

func (c checker) failf(label string, err error) {
	c.res.fail(fmt.Sprintf("%s: %v", label, err))
	fmt.Fprintf(c.w, "%s %s: %v\n", FailMark, label, err)
}

func (c checker) file(label, path string) bool {
	if path == "" {
		return false
	}

	fi, err := os.Stat(path)
	switch {
	case err != nil:
		c.failf(label+" "+path, err)
		return false
	case fi.IsDir():
		c.failf(label+" "+path, fmt.Errorf("is a directory"))
		return false
	}

	c.pass("%s: %s", label, path)

	return true
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result
	c := checker{w: w, res: &res}

	// ---- tokenizer ----------------------------------------------------------
	tokOK := c.file("tokenizer.json", cfg.TokenizerJSON)
	if cfg.TokenizerModel != "" {
		tokOK = c.file("tokenizer fallback model", cfg.TokenizerModel) && tokOK
	}

	if cfg.ProbeTokenizer != nil {
		if !tokOK {
			c.pass("tokenizer probe: skipped (tokenizer files missing)")
		} else if summary, err := cfg.ProbeTokenizer(); err != nil {
			c.failf("tokenizer probe", err)
		} else {
			c.pass("tokenizer probe: %s", summary)
		}
	}

	// ---- speaker profiles ---------------------------------------------------
	for _, path := range cfg.SpeakerFiles {
		c.file("speaker profile", path)
	}

	// ---- ONNX Runtime and decoder -------------------------------------------
	if cfg.SkipRuntime {
		c.pass("onnx runtime: skipped")
		return res
	}

	runtimeOK := true
	if cfg.ORTVersion != nil {
		ver, err := cfg.ORTVersion()
		switch {
		case err != nil:
			runtimeOK = false
			c.failf("onnx runtime", err)
		case ver == "" || ver == "unknown":
			c.pass("onnx runtime: found (version unknown)")
		default:
			if verErr := checkORTVersion(ver, cfg.ORTAPIVersion); verErr != nil {
				runtimeOK = false
				c.failf("onnx runtime "+ver, verErr)
			} else {
				c.pass("onnx runtime: %s", ver)
			}
		}
	}

	decoderOK := c.file("decoder model", cfg.DecoderModel)

	if cfg.WarmupDecoder != nil {
		if !runtimeOK || !decoderOK {
			c.pass("decoder warmup: skipped (runtime or model missing)")
		} else if err := cfg.WarmupDecoder(); err != nil {
			c.failf("decoder warmup", err)
		} else {
			c.pass("decoder warmup: ok")
		}
	}

	return res
}

// checkORTVersion returns an error if an ONNX Runtime release cannot serve
// the requested C API version. Release 1.N ships C API versions up to N.
func checkORTVersion(ver string, apiVersion uint32) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if apiVersion > 0 && uint32(minor) < apiVersion {
		return fmt.Errorf("C API version %d requires ONNX Runtime >=1.%d, got 1.%d", apiVersion, apiVersion, minor)
	}

	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
