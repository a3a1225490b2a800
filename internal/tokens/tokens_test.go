package tokens

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \t\n", 0},
		{"punctuation only", "?!... --- ***", 0},
		{"single word", "hello", 1},
		{"simple sentence", "the quick brown fox", 4},
		{"punctuation stripped", "Hello, world! How are you?", 5},
		{"contraction is one token", "don't stop", 2},
		{"numbers count", "port 8000 is open", 4},
		{"unicode letters", "héllo wörld", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimate_NonNegative(t *testing.T) {
	inputs := []string{"", "a", "\x00\x01", "日本語のテキスト", "a b c d e f g"}
	for _, in := range inputs {
		if got := Estimate(in); got < 0 {
			t.Errorf("Estimate(%q) = %d, want non-negative", in, got)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("cats cats, cats!")
	if len(got) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(got), got)
	}
	for _, tok := range got {
		if tok != "cats" {
			t.Errorf("unexpected token %q", tok)
		}
	}

	if got := Tokenize(""); got != nil {
		t.Errorf("Tokenize(\"\") = %v, want nil", got)
	}
}
