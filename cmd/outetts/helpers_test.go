package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// codeBase is the id of the "<|0|>" added token in the test tokenizer.
const codeBase = 10000

// writeTokenizerJSON writes a tokenizer.json whose vocabulary holds every
// printable ASCII character (id = byte value) plus one added token per
// audio code.
func writeTokenizerJSON(t *testing.T) string {
	t.Helper()

	vocab := map[string]int64{"\n": '\n'}
	for b := ' '; b <= '~'; b++ {
		vocab[string(b)] = int64(b)
	}

	added := make([]map[string]any, 0, 4100)
	for code := range 4100 {
		added = append(added, map[string]any{"id": codeBase + code, "content": fmt.Sprintf("<|%d|>", code)})
	}

	data, err := json.Marshal(map[string]any{
		"added_tokens": added,
		"model":        map[string]any{"type": "BPE", "vocab": vocab, "merges": []any{}},
	})
	if err != nil {
		t.Fatalf("marshal tokenizer.json: %v", err)
	}

	return writeFile(t, t.TempDir(), "tokenizer.json", string(data))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return p
}

// writeSpeakerManifest lays out a manifest with one English speaker.
func writeSpeakerManifest(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "profiles/male_1.yaml", `language: en
text: hi
words:
  - word: hi
    duration: 0.5
    codes: [1, 2]
`)

	return writeFile(t, dir, "speakers.yaml", `speakers:
  - {language: en, name: male_1, path: profiles/male_1.yaml}
  - {language: ja, name: female_1, path: profiles/missing.yaml}
`)
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	var out, errOut bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.Execute()

	return out.String(), err
}
