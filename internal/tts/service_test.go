package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/example/go-outetts/internal/audio"
	"github.com/example/go-outetts/internal/model"
	"github.com/example/go-outetts/internal/prompt"
	"github.com/example/go-outetts/internal/text"
)

const codeBase = 100000

// runeTokenizer encodes audio-code markers as codeBase+N and every other
// rune as its code point.
type runeTokenizer struct {
	fail error
}

func (r runeTokenizer) Encode(s string) ([]int64, error) {
	if r.fail != nil {
		return nil, r.fail
	}

	var n int
	if _, err := fmt.Sscanf(s, "<|%d|>", &n); err == nil && s == fmt.Sprintf("<|%d|>", n) {
		return []int64{codeBase + int64(n)}, nil
	}

	ids := make([]int64, 0, len(s))
	for _, r := range s {
		ids = append(ids, int64(r))
	}

	return ids, nil
}

type decoderFunc func(ctx context.Context, codes []int) (audio.Waveform, error)

func (f decoderFunc) Decode(ctx context.Context, codes []int) (audio.Waveform, error) {
	return f(ctx, codes)
}

// rampDecoder produces one sample per code and records the codes it saw.
func rampDecoder(seen *[]int) Decoder {
	return decoderFunc(func(_ context.Context, codes []int) (audio.Waveform, error) {
		*seen = slices.Clone(codes)

		samples := make([]float32, len(codes))
		for i, c := range codes {
			samples[i] = float32(c) / 4096
		}

		return audio.Waveform{Samples: samples, SampleRate: audio.SampleRate, Channels: 1}, nil
	})
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)

	svc, err := NewService(context.Background(), model.DefaultVersion, runeTokenizer{}, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc
}

func TestNewService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		version string
		tok     prompt.Tokenizer
		opts    []Option
		want    error
	}{
		{"unknown version", "0.1", runeTokenizer{}, nil, model.ErrUnsupportedVersion},
		{"unsupported language", "0.2", runeTokenizer{}, []Option{WithLanguage("fr")}, text.ErrUnsupportedLanguage},
		{"sequence too long", "0.2", runeTokenizer{}, []Option{WithMaxSeqLength(4097)}, model.ErrSequenceTooLong},
		{"probe failure", "0.2", runeTokenizer{fail: errors.New("boom")}, nil, prompt.ErrTokenizerProbe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, tt.opts...)
			_, err := NewService(context.Background(), tt.version, tt.tok, opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewService error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestService_Defaults(t *testing.T) {
	svc := newTestService(t)

	if svc.Language() != "en" {
		t.Errorf("Language() = %q; want en", svc.Language())
	}
	if svc.Model().Version != model.DefaultVersion {
		t.Errorf("Model().Version = %q", svc.Model().Version)
	}
	if got := svc.Processor().Languages(); !slices.Equal(got, []string{"en", "ja", "ko", "zh"}) {
		t.Errorf("processor languages = %v", got)
	}
	if svc.maxSeqLength != 4096 {
		t.Errorf("maxSeqLength = %d; want model maximum", svc.maxSeqLength)
	}
}

func TestService_PreparePrompt(t *testing.T) {
	svc := newTestService(t)

	p, err := svc.PreparePrompt("Hello, world 2!", nil)
	if err != nil {
		t.Fatalf("PreparePrompt: %v", err)
	}

	want, _ := svc.Processor().CompletionPrompt("Hello, world 2!", "en", nil)
	if p.Text != want {
		t.Errorf("Text = %q; want %q", p.Text, want)
	}
	if !strings.Contains(p.Text, "hello<|text_sep|>world<|text_sep|>two") {
		t.Errorf("Text = %q lacks normalized words", p.Text)
	}

	ids, _ := runeTokenizer{}.Encode(want)
	if !slices.Equal(p.IDs, ids) {
		t.Errorf("IDs = %v; want %v", p.IDs, ids)
	}
}

func TestService_PreparePrompt_WithSpeaker(t *testing.T) {
	svc := newTestService(t)

	speaker := &prompt.SpeakerReference{
		Language: "en",
		Text:     "hi",
		Words:    []prompt.VoicedWord{{Word: "hi", Duration: 0.5, Codes: []int{1, 2}}},
	}

	p, err := svc.PreparePrompt("there", speaker)
	if err != nil {
		t.Fatalf("PreparePrompt: %v", err)
	}
	if !strings.HasSuffix(p.Text, "hi<|t_0.50|><|code_start|><|1|><|2|><|code_end|>") {
		t.Errorf("Text = %q does not end with the voice-clone segment", p.Text)
	}
	if !slices.Contains(p.IDs, codeBase+2) {
		t.Errorf("IDs do not contain the code 2 token: %v", p.IDs)
	}
}

func TestService_PreparePrompt_Errors(t *testing.T) {
	svc := newTestService(t, WithMaxSeqLength(40))

	if _, err := svc.PreparePrompt("a fairly long sentence that will not fit", nil); !errors.Is(err, model.ErrSequenceTooLong) {
		t.Errorf("long prompt error = %v; want ErrSequenceTooLong", err)
	}

	ja := newTestService(t, WithLanguage("ja"))
	if _, err := ja.PreparePrompt("konnichiwa", nil); !errors.Is(err, text.ErrUnsupportedLanguage) {
		t.Errorf("ja prompt error = %v; want ErrUnsupportedLanguage from the normalizer", err)
	}
}

func TestService_Audio(t *testing.T) {
	var seen []int
	svc := newTestService(t, WithDecoder(rampDecoder(&seen)))

	tokens := []int64{'x', codeBase + 5, 42, codeBase, codeBase + 4099, codeBase + 4100}

	w, err := svc.Audio(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}

	if want := []int{5, 0, 4099}; !slices.Equal(seen, want) {
		t.Errorf("decoder saw %v; want %v", seen, want)
	}
	if len(w.Samples) != 3 || w.SampleRate != audio.SampleRate {
		t.Errorf("waveform = %+v", w)
	}
}

func TestService_Audio_NoCodes(t *testing.T) {
	var logs bytes.Buffer
	var seen []int

	svc, err := NewService(context.Background(), model.DefaultVersion, runeTokenizer{},
		WithDecoder(rampDecoder(&seen)),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Audio(context.Background(), []int64{1, 2, 3})
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Audio error = %v; want ErrNoAudio", err)
	}
	if seen != nil {
		t.Error("decoder should not run without codes")
	}
	if !strings.Contains(logs.String(), `"level":"WARN"`) || !strings.Contains(logs.String(), "no audio codes") {
		t.Errorf("expected a warning log, got %s", logs.String())
	}
}

func TestService_Audio_Errors(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Audio(context.Background(), []int64{codeBase + 1}); !errors.Is(err, ErrNoDecoder) {
		t.Errorf("Audio without decoder error = %v; want ErrNoDecoder", err)
	}

	boom := errors.New("decoder exploded")
	failing := newTestService(t, WithDecoder(decoderFunc(func(context.Context, []int) (audio.Waveform, error) {
		return audio.Waveform{}, boom
	})))
	if _, err := failing.Audio(context.Background(), []int64{codeBase + 1}); !errors.Is(err, boom) {
		t.Errorf("Audio error = %v; want wrapped decoder error", err)
	}
}

func TestService_Render(t *testing.T) {
	var seen []int
	tokens := []int64{codeBase + 1, codeBase + 2, codeBase + 3, codeBase + 4}

	svc := newTestService(t, WithDecoder(rampDecoder(&seen)))
	wav, err := svc.Render(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(wav) != 44+4*4 {
		t.Errorf("float32 WAV length = %d; want %d", len(wav), 44+4*4)
	}

	back, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if back.Samples[3] != float32(4)/4096 {
		t.Errorf("decoded sample = %v", back.Samples[3])
	}

	pcm := newTestService(t, WithDecoder(rampDecoder(&seen)), WithFormat(audio.FormatPCM16))
	wav, err = pcm.Render(context.Background(), tokens)
	if err != nil {
		t.Fatalf("Render pcm16: %v", err)
	}
	if _, err := audio.DecodePCM16(wav); err != nil {
		t.Errorf("pcm16 output does not decode: %v", err)
	}
}

func TestService_Speaker(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Speaker("male_1"); err == nil {
		t.Error("Speaker without manifest = nil; want error")
	}
	if svc.Speakers() != nil {
		t.Error("Speakers() should be nil without a manifest")
	}

	mgr, err := NewSpeakerManager(newSpeakerDir(t))
	if err != nil {
		t.Fatalf("NewSpeakerManager: %v", err)
	}

	svc = newTestService(t, WithSpeakers(mgr))
	ref, err := svc.Speaker("male_1")
	if err != nil {
		t.Fatalf("Speaker: %v", err)
	}
	if _, err := svc.PreparePrompt("good morning", ref); err != nil {
		t.Errorf("PreparePrompt with loaded speaker: %v", err)
	}
}

func TestService_Close(t *testing.T) {
	var closed int
	svc := newTestService(t, withCloser(func() { closed++ }))

	svc.Close()
	svc.Close()

	if closed != 1 {
		t.Errorf("closer ran %d times; want 1", closed)
	}
}
