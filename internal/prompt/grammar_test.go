package prompt

import "testing"

func TestGrammar_AudioCode(t *testing.T) {
	for code, want := range map[int]string{0: "<|0|>", 7: "<|7|>", 4099: "<|4099|>"} {
		if got := GrammarV02.AudioCode(code); got != want {
			t.Errorf("AudioCode(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestGrammar_Timestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "<|t_0.00|>"},
		{0.2, "<|t_0.20|>"},
		{0.35, "<|t_0.35|>"},
		{1, "<|t_1.00|>"},
		{0.125, "<|t_0.13|>"}, // exact half rounds up
		{0.375, "<|t_0.38|>"},
		{0.005, "<|t_0.01|>"},  // 0.005000000000000000104 is above the half
		{1.005, "<|t_1.00|>"},  // 1.00499999999999989342 is below the half
		{12.3456, "<|t_12.35|>"},
		{123.994, "<|t_123.99|>"},
		{9.999, "<|t_10.00|>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := GrammarV02.Timestamp(tt.seconds); got != tt.want {
				t.Errorf("Timestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestGrammarV02_Markers(t *testing.T) {
	g := GrammarV02

	markers := []string{
		g.BeginOfTurn, g.EndOfTurn, g.TextStart, g.TextEnd, g.AudioStart,
		g.AudioEnd, g.CodeStart, g.CodeEnd, g.TextSeparator,
	}

	seen := make(map[string]bool, len(markers))
	for _, m := range markers {
		if m == "" {
			t.Fatal("grammar has an empty marker")
		}
		if seen[m] {
			t.Fatalf("marker %q declared twice", m)
		}
		seen[m] = true
	}
}
