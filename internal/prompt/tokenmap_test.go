package prompt

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// markerTokenizer encodes "<|N|>" markers to base+N and everything else to
// the byte values of the string.
type markerTokenizer struct {
	base  int64
	calls atomic.Int64
}

func (m *markerTokenizer) Encode(s string) ([]int64, error) {
	m.calls.Add(1)

	if inner, ok := strings.CutPrefix(s, "<|"); ok {
		if num, ok := strings.CutSuffix(inner, "|>"); ok {
			if n, err := strconv.Atoi(num); err == nil {
				return []int64{m.base + int64(n)}, nil
			}
		}
	}

	ids := make([]int64, len(s))
	for i := range len(s) {
		ids[i] = int64(s[i])
	}

	return ids, nil
}

// funcTokenizer adapts a function to Tokenizer.
type funcTokenizer func(string) ([]int64, error)

func (f funcTokenizer) Encode(s string) ([]int64, error) { return f(s) }

func TestBuildAudioTokenMap_FullRange(t *testing.T) {
	tok := &markerTokenizer{base: 151_000}

	m, err := BuildAudioTokenMap(context.Background(), tok, GrammarV02)
	if err != nil {
		t.Fatalf("BuildAudioTokenMap: %v", err)
	}

	if m.Len() != DefaultCodeCount {
		t.Fatalf("Len() = %d, want %d", m.Len(), DefaultCodeCount)
	}

	if got := tok.calls.Load(); got != DefaultCodeCount {
		t.Errorf("Encode called %d times, want exactly %d", got, DefaultCodeCount)
	}

	seenIDs := make(map[int64]int, DefaultCodeCount)
	seenCodes := make(map[int]int64, DefaultCodeCount)

	for code := range DefaultCodeCount {
		id, ok := m.TokenFor(code)
		if !ok {
			t.Fatalf("TokenFor(%d) missing", code)
		}
		if prev, dup := seenIDs[id]; dup {
			t.Fatalf("token id %d used by codes %d and %d", id, prev, code)
		}
		seenIDs[id] = code

		back, ok := m.CodeFor(id)
		if !ok || back != code {
			t.Fatalf("CodeFor(%d) = %d, %v; want %d", id, back, ok, code)
		}
		if _, dup := seenCodes[back]; dup {
			t.Fatalf("code %d returned twice", back)
		}
		seenCodes[back] = id
	}
}

func TestBuildAudioTokenMap_DeterministicAcrossWorkerCounts(t *testing.T) {
	for _, workers := range []int{1, 3, 64} {
		m, err := BuildAudioTokenMap(
			context.Background(),
			&markerTokenizer{base: 10},
			GrammarV02,
			WithProbeWorkers(workers),
			WithCodeCount(257),
		)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}

		for code := range 257 {
			id, _ := m.TokenFor(code)
			if id != int64(10+code) {
				t.Fatalf("workers=%d: TokenFor(%d) = %d, want %d", workers, code, id, 10+code)
			}
		}
	}
}

func TestBuildAudioTokenMap_FirstIDWins(t *testing.T) {
	tok := funcTokenizer(func(s string) ([]int64, error) {
		n, _ := strconv.Atoi(strings.Trim(s, "<|>"))
		return []int64{int64(500 + n), 7}, nil
	})

	m, err := BuildAudioTokenMap(context.Background(), tok, GrammarV02, WithCodeCount(4))
	if err != nil {
		t.Fatalf("BuildAudioTokenMap: %v", err)
	}

	for code := range 4 {
		if id, _ := m.TokenFor(code); id != int64(500+code) {
			t.Errorf("TokenFor(%d) = %d, want first id %d", code, id, 500+code)
		}
	}
}

func TestBuildAudioTokenMap_StrictRejectsSplitMarkers(t *testing.T) {
	tok := funcTokenizer(func(s string) ([]int64, error) {
		n, _ := strconv.Atoi(strings.Trim(s, "<|>"))
		return []int64{int64(500 + n), 7}, nil
	})

	_, err := BuildAudioTokenMap(context.Background(), tok, GrammarV02, WithCodeCount(4), WithStrictProbe())
	if !errors.Is(err, ErrTokenizerProbe) {
		t.Fatalf("error = %v, want ErrTokenizerProbe", err)
	}
}

func TestBuildAudioTokenMap_Errors(t *testing.T) {
	encodeErr := errors.New("vocab exploded")

	tests := []struct {
		name string
		tok  Tokenizer
	}{
		{
			name: "collision",
			tok: funcTokenizer(func(string) ([]int64, error) {
				return []int64{42}, nil
			}),
		},
		{
			name: "empty encoding",
			tok: funcTokenizer(func(string) ([]int64, error) {
				return nil, nil
			}),
		},
		{
			name: "encode error",
			tok: funcTokenizer(func(string) ([]int64, error) {
				return nil, encodeErr
			}),
		},
		{
			name: "nil tokenizer",
			tok:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := BuildAudioTokenMap(context.Background(), tt.tok, GrammarV02, WithCodeCount(16))
			if !errors.Is(err, ErrTokenizerProbe) {
				t.Fatalf("error = %v, want ErrTokenizerProbe", err)
			}
			if m != nil {
				t.Error("expected nil map on error")
			}
		})
	}
}

func TestBuildAudioTokenMap_CollisionReportsLowestCodes(t *testing.T) {
	// Codes 3 and 5 collide; whatever the completion order, the error names them.
	tok := funcTokenizer(func(s string) ([]int64, error) {
		n, _ := strconv.Atoi(strings.Trim(s, "<|>"))
		if n == 5 {
			return []int64{3}, nil
		}
		return []int64{int64(n)}, nil
	})

	_, err := BuildAudioTokenMap(context.Background(), tok, GrammarV02, WithCodeCount(8), WithProbeWorkers(8))
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !strings.Contains(err.Error(), "codes 3 and 5") {
		t.Errorf("error = %q, want it to name codes 3 and 5", err)
	}
}

func TestBuildAudioTokenMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildAudioTokenMap(ctx, &markerTokenizer{}, GrammarV02)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestNewAudioTokenMap(t *testing.T) {
	m, err := NewAudioTokenMap([]int64{90, 91, 92})
	if err != nil {
		t.Fatalf("NewAudioTokenMap: %v", err)
	}

	if code, ok := m.CodeFor(91); !ok || code != 1 {
		t.Errorf("CodeFor(91) = %d, %v; want 1, true", code, ok)
	}
	if _, ok := m.CodeFor(93); ok {
		t.Error("CodeFor(93) should be absent")
	}
	if _, ok := m.TokenFor(3); ok {
		t.Error("TokenFor(3) should be absent")
	}
	if _, ok := m.TokenFor(-1); ok {
		t.Error("TokenFor(-1) should be absent")
	}

	if _, err := NewAudioTokenMap([]int64{1, 2, 1}); !errors.Is(err, ErrTokenizerProbe) {
		t.Errorf("duplicate ids error = %v, want ErrTokenizerProbe", err)
	}
}
