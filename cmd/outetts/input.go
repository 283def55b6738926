package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// readText returns the joined positional args, or stdin when there are none.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", errors.New("no input text: pass it as arguments or on stdin")
	}

	return s, nil
}

// openInput opens path for reading; "" and "-" mean stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token stream: %w", err)
	}

	return f, nil
}

// readTokenStream parses generated token ids given either as a JSON array
// or as whitespace-separated integers.
func readTokenStream(r io.Reader) ([]int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read token stream: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty token stream")
	}

	if data[0] == '[' {
		var ids []int64
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, fmt.Errorf("decode token stream: %w", err)
		}
		return ids, nil
	}

	fields := strings.Fields(string(data))
	ids := make([]int64, 0, len(fields))
	for i, f := range fields {
		id, err := strconv.ParseInt(strings.TrimSuffix(f, ","), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
