package knowledge

import (
	"strings"
	"testing"
)

func TestSplitText_ShortInput(t *testing.T) {
	chunks := SplitText("hello world", 500, 50)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("short input should produce one chunk, got %v", chunks)
	}
}

func TestSplitText_EmptyInput(t *testing.T) {
	if chunks := SplitText("   \n\t  ", 500, 50); chunks != nil {
		t.Errorf("whitespace input should produce no chunks, got %v", chunks)
	}
}

func TestSplitText_RespectsSize(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)

	chunks := SplitText(text, 500, 50)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 500 {
			t.Errorf("chunk %d has %d runes, exceeds size 500", i, len([]rune(c)))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitText_PrefersWordBoundaries(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 60)

	chunks := SplitText(text, 100, 10)

	for i, c := range chunks {
		for _, word := range strings.Fields(c) {
			switch word {
			case "alpha", "beta", "gamma", "delta":
			default:
				t.Errorf("chunk %d split mid-word: %q", i, word)
			}
		}
	}
}

func TestSplitText_CoversWholeInput(t *testing.T) {
	text := strings.Repeat("one two three four five six seven eight nine ten ", 30)

	chunks := SplitText(text, 120, 20)

	if !strings.HasPrefix(chunks[0], "one") {
		t.Errorf("first chunk should start at the beginning, got %q", chunks[0][:10])
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last, "ten") {
		t.Errorf("last chunk should end at the end of input, got %q", last)
	}
}

func TestSplitText_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 1200)

	chunks := SplitText(text, 500, 50)

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for 1200 runes at size 500 overlap 50, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 500 {
			t.Errorf("chunk %d exceeds size: %d", i, len(c))
		}
	}
}

func TestSplitText_InvalidParams(t *testing.T) {
	if chunks := SplitText("text", 0, 0); chunks != nil {
		t.Errorf("zero size should produce nil, got %v", chunks)
	}

	// Overlap >= size falls back to no overlap rather than looping forever.
	chunks := SplitText(strings.Repeat("word ", 100), 50, 50)
	if len(chunks) == 0 {
		t.Error("oversized overlap should still split")
	}
}
