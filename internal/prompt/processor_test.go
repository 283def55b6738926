package prompt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/example/go-outetts/internal/text"
)

const testTokenBase = 151_000

func newTestProcessor(t *testing.T, languages []string, opts ...Option) *Processor {
	t.Helper()

	p, err := NewProcessor(context.Background(), &markerTokenizer{base: testTokenBase}, languages, opts...)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	return p
}

func audioID(code int) int64 { return int64(testTokenBase + code) }

func TestNewProcessor_ValidatesLanguages(t *testing.T) {
	tokens, err := NewAudioTokenMap([]int64{1, 2})
	if err != nil {
		t.Fatalf("NewAudioTokenMap: %v", err)
	}

	for _, langs := range [][]string{nil, {}, {"en", ""}, {"en", "en"}, {" "}} {
		if _, err := NewProcessorWithMap(tokens, langs); err == nil {
			t.Errorf("NewProcessorWithMap(%q) expected error", langs)
		}
	}

	if _, err := NewProcessorWithMap(nil, []string{"en"}); err == nil {
		t.Error("NewProcessorWithMap(nil map) expected error")
	}
}

func TestNewProcessor_ProbeFailureIsFatal(t *testing.T) {
	tok := funcTokenizer(func(string) ([]int64, error) { return []int64{1}, nil })

	_, err := NewProcessor(context.Background(), tok, []string{"en"})
	if !errors.Is(err, ErrTokenizerProbe) {
		t.Fatalf("error = %v, want ErrTokenizerProbe", err)
	}
}

func TestProcessText(t *testing.T) {
	p := newTestProcessor(t, []string{"en", "ja"})

	words, err := p.ProcessText("Hello, World 2", "en")
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if want := []string{"hello", "world", "two"}; !slices.Equal(words, want) {
		t.Errorf("ProcessText = %q, want %q", words, want)
	}

	// Configured but without normalization rules.
	if _, err := p.ProcessText("hello", "ja"); !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Errorf("ProcessText(ja) error = %v, want ErrUnsupportedLanguage", err)
	}

	// Not configured at all.
	if _, err := p.ProcessText("hello", "fr"); !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Errorf("ProcessText(fr) error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestProcessText_EnglishNotConfigured(t *testing.T) {
	p := newTestProcessor(t, []string{"ko"})

	if _, err := p.ProcessText("hello", "en"); !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestCompletionPrompt_WithoutSpeaker(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	got, err := p.CompletionPrompt("hello world", "en", nil)
	if err != nil {
		t.Fatalf("CompletionPrompt: %v", err)
	}

	want := "<|im_start|>\n<|text_start|>hello<|text_sep|>world<|text_end|>\n<|audio_start|>\n"
	if got != want {
		t.Errorf("CompletionPrompt =\n%q\nwant\n%q", got, want)
	}

	for range 10 {
		again, err := p.CompletionPrompt("hello world", "en", nil)
		if err != nil {
			t.Fatalf("CompletionPrompt: %v", err)
		}
		if again != got {
			t.Fatalf("CompletionPrompt not byte-identical across calls")
		}
	}
}

func TestCompletionPrompt_EmptyText(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	got, err := p.CompletionPrompt("", "en", nil)
	if err != nil {
		t.Fatalf("CompletionPrompt: %v", err)
	}

	want := "<|im_start|>\n<|text_start|><|text_end|>\n<|audio_start|>\n"
	if got != want {
		t.Errorf("CompletionPrompt = %q, want %q", got, want)
	}
}

func testSpeaker() *SpeakerReference {
	return &SpeakerReference{
		Language: "en",
		Text:     "Hi there.",
		Words: []VoicedWord{
			{Word: "hi", Duration: 0.2, Codes: []int{1, 2}},
			{Word: "there", Duration: 0.355, Codes: []int{0, 4099}},
		},
	}
}

func TestVoiceCloneSegment(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	got := p.VoiceCloneSegment(testSpeaker())
	want := "hi<|t_0.20|><|code_start|><|1|><|2|><|code_end|>\n" +
		"there<|t_0.35|><|code_start|><|0|><|4099|><|code_end|>"
	if got != want {
		t.Errorf("VoiceCloneSegment =\n%q\nwant\n%q", got, want)
	}
}

func TestVoiceCloneSegment_NilSpeaker(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	if got := p.VoiceCloneSegment(nil); got != "" {
		t.Errorf("VoiceCloneSegment(nil) = %q, want empty", got)
	}
}

func TestVoiceCloneSegment_EmptyCodes(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	got := p.VoiceCloneSegment(&SpeakerReference{
		Language: "en",
		Words:    []VoicedWord{{Word: "uh", Duration: 0}},
	})
	if want := "uh<|t_0.00|><|code_start|><|code_end|>"; got != want {
		t.Errorf("VoiceCloneSegment = %q, want %q", got, want)
	}
}

func TestCompletionPrompt_WithSpeaker(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	got, err := p.CompletionPrompt("good morning", "en", testSpeaker())
	if err != nil {
		t.Fatalf("CompletionPrompt: %v", err)
	}

	want := "<|im_start|>\n" +
		"<|text_start|>hi<|text_sep|>there<|text_sep|>good<|text_sep|>morning<|text_end|>\n" +
		"<|audio_start|>\n" +
		"hi<|t_0.20|><|code_start|><|1|><|2|><|code_end|>\n" +
		"there<|t_0.35|><|code_start|><|0|><|4099|><|code_end|>"
	if got != want {
		t.Errorf("CompletionPrompt =\n%q\nwant\n%q", got, want)
	}

	if strings.Contains(got, GrammarV02.AudioEnd) {
		t.Error("voice-cloned prompt must not contain the audio end marker")
	}
}

func TestCompletionPrompt_LanguageMismatchWarns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	p := newTestProcessor(t, []string{"en", "ja"}, WithLogger(logger))

	speaker := testSpeaker()
	speaker.Language = "ja"

	// Speaker text is normalized under its own language, which has no rules.
	_, err := p.CompletionPrompt("hello", "en", speaker)
	if !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage from speaker text", err)
	}

	if !strings.Contains(logs.String(), "speaker language does not match") {
		t.Errorf("expected mismatch warning in logs, got %q", logs.String())
	}
}

func TestCompletionPrompt_LanguageMismatchContinues(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	p := newTestProcessor(t, []string{"en"}, WithLogger(logger))

	speaker := testSpeaker()
	speaker.Language = "en"

	if _, err := p.CompletionPrompt("hello", "en", speaker); err != nil {
		t.Fatalf("CompletionPrompt: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no warning for matching languages, got %q", logs.String())
	}
}

func TestCompletionPrompt_UnsupportedLanguage(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	if _, err := p.CompletionPrompt("hello", "de", nil); !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Fatalf("error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestExtractAudioCodes(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})

	tests := []struct {
		name   string
		stream []int64
		want   []int
	}{
		{
			name:   "interleaved text and audio ids",
			stream: []int64{5, audioID(7), 9, audioID(2)},
			want:   []int{7, 2},
		},
		{
			name:   "code zero is kept",
			stream: []int64{audioID(0), 1, audioID(0)},
			want:   []int{0, 0},
		},
		{
			name:   "range boundaries",
			stream: []int64{audioID(4099), audioID(4100), audioID(-1)},
			want:   []int{4099},
		},
		{
			name:   "no audio",
			stream: []int64{1, 2, 3},
			want:   []int{},
		},
		{
			name:   "empty stream",
			stream: nil,
			want:   []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ExtractAudioCodes(tt.stream)
			if got == nil {
				t.Fatal("ExtractAudioCodes returned nil, want empty slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ExtractAudioCodes(%v) = %v, want %v", tt.stream, got, tt.want)
			}
		})
	}
}

func TestExtractAudioCodes_RoundTripsVoiceCloneIDs(t *testing.T) {
	p := newTestProcessor(t, []string{"en"})
	tok := &markerTokenizer{base: testTokenBase}

	var stream []int64
	for _, w := range testSpeaker().Words {
		for _, c := range w.Codes {
			ids, err := tok.Encode(p.Grammar().AudioCode(c))
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			stream = append(stream, ids...)
		}
		stream = append(stream, 1, 2, 3)
	}

	if got, want := p.ExtractAudioCodes(stream), []int{1, 2, 0, 4099}; !slices.Equal(got, want) {
		t.Errorf("ExtractAudioCodes = %v, want %v", got, want)
	}
}

func TestProcessor_Accessors(t *testing.T) {
	p := newTestProcessor(t, []string{"en", "zh"})

	langs := p.Languages()
	langs[0] = "xx"
	if p.Languages()[0] != "en" {
		t.Error("Languages() must return a copy")
	}

	if p.TokenMap().Len() != DefaultCodeCount {
		t.Errorf("TokenMap().Len() = %d, want %d", p.TokenMap().Len(), DefaultCodeCount)
	}

	if p.Grammar().Version != "0.2" {
		t.Errorf("Grammar().Version = %q, want 0.2", p.Grammar().Version)
	}
}
