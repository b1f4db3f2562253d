package texttospeech

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

func collectChunks(policy BoundaryPolicy) (*Chunker, *[]TextChunk) {
	chunks := &[]TextChunk{}
	chunker := NewChunker(policy, func(chunk TextChunk) {
		*chunks = append(*chunks, chunk)
	})
	return chunker, chunks
}

func joinChunks(chunks []TextChunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Text)
	}
	return b.String()
}

func TestChunkerConcatenationIsExact(t *testing.T) {
	texts := []string{
		"Hello world. How are you today? I'm fine, thanks for asking!  Let's go.",
		"Dr. Smith paid $3.50 for e.g. coffee; then he left: quickly, quietly, and without a word.\n\nNew paragraph",
		"No punctuation at all just a long run of words that keeps going and going past any sensible limit without stopping once",
		"Ünïcödé ísn't a problem… «quoted.» ¿Sí? ¡Claro! 日本語のテキストも大丈夫です。",
		"   leading and trailing whitespace.   ",
		"",
	}
	rng := rand.New(rand.NewSource(1))

	for _, text := range texts {
		for trial := 0; trial < 50; trial++ {
			chunker, chunks := collectChunks(PunctuationPolicy{MinClauseLength: 16, MaxLength: 40})

			remaining := text
			for remaining != "" {
				n := min(1+rng.Intn(8), len(remaining))
				chunker.Append(remaining[:n])
				remaining = remaining[n:]
			}
			chunker.Flush()

			if got := joinChunks(*chunks); got != text {
				t.Fatalf("concatenation mismatch\nwant %q\ngot  %q", text, got)
			}
			for i, chunk := range *chunks {
				if chunk.Text == "" {
					t.Fatalf("chunk %d is empty", i)
				}
				if chunk.Index != i {
					t.Fatalf("expected chunk index %d, got %d", i, chunk.Index)
				}
			}
		}
	}
}

func TestChunkerCutsAtSentenceBoundaries(t *testing.T) {
	chunker, chunks := collectChunks(nil)

	chunker.Append("Hello world. How are")
	chunker.Append(" you? Fine")

	if len(*chunks) != 2 {
		t.Fatalf("expected two chunks, got %q", *chunks)
	}
	if (*chunks)[0].Text != "Hello world. " || (*chunks)[1].Text != "How are you? " {
		t.Fatalf("unexpected chunks %q", *chunks)
	}
	if chunker.Pending() != "Fine" {
		t.Fatalf("expected \"Fine\" pending, got %q", chunker.Pending())
	}

	chunker.Flush()
	if len(*chunks) != 3 || (*chunks)[2].Text != "Fine" {
		t.Fatalf("expected flushed remainder, got %q", *chunks)
	}
}

func TestChunkerWaitsForWhitespaceAfterPunctuation(t *testing.T) {
	chunker, chunks := collectChunks(nil)

	chunker.Append("Pi is 3.14 exactly.")
	if len(*chunks) != 0 {
		t.Fatalf("expected no chunk until the sentence is followed by whitespace, got %q", *chunks)
	}
	chunker.Append(" Next")
	if len(*chunks) != 1 || (*chunks)[0].Text != "Pi is 3.14 exactly. " {
		t.Fatalf("unexpected chunks %q", *chunks)
	}
}

func TestChunkerSkipsAbbreviations(t *testing.T) {
	chunker, chunks := collectChunks(nil)

	chunker.Append("Dr. Smith met J. Doe at the U.S. office. Then left")
	if len(*chunks) != 1 || (*chunks)[0].Text != "Dr. Smith met J. Doe at the U.S. office. " {
		t.Fatalf("unexpected chunks %q", *chunks)
	}
}

func TestChunkerCutsAtClausesOnlyWhenLongEnough(t *testing.T) {
	chunker, chunks := collectChunks(PunctuationPolicy{MinClauseLength: 32})

	chunker.Append("Yes, it is")
	if len(*chunks) != 0 {
		t.Fatalf("expected short clause not to be cut, got %q", *chunks)
	}
	chunker.Reset()

	chunker.Append("This sentence has a long opening clause, and then more")
	if len(*chunks) != 1 || (*chunks)[0].Text != "This sentence has a long opening clause, " {
		t.Fatalf("unexpected chunks %q", *chunks)
	}
}

func TestChunkerForcesCutAtMaxLength(t *testing.T) {
	chunker, chunks := collectChunks(PunctuationPolicy{MaxLength: 20})

	chunker.Append("aaaa bbbb cccc dddd eeee ffff")
	if len(*chunks) != 1 || (*chunks)[0].Text != "aaaa bbbb cccc dddd " {
		t.Fatalf("unexpected chunks %q", *chunks)
	}
	if chunker.Pending() != "eeee ffff" {
		t.Fatalf("unexpected pending %q", chunker.Pending())
	}
}

func TestChunkerForcedCutKeepsRunesWhole(t *testing.T) {
	chunker, chunks := collectChunks(PunctuationPolicy{MaxLength: 5})

	chunker.Append("ééééé")
	chunker.Flush()

	if joinChunks(*chunks) != "ééééé" {
		t.Fatalf("unexpected concatenation %q", joinChunks(*chunks))
	}
	for _, chunk := range *chunks {
		if !utf8.ValidString(chunk.Text) {
			t.Fatalf("chunk %q splits a rune", chunk.Text)
		}
	}
}

func TestChunkerResetDiscardsPendingText(t *testing.T) {
	chunker, chunks := collectChunks(nil)

	chunker.Append("never spoken")
	chunker.Reset()
	chunker.Flush()

	if len(*chunks) != 0 {
		t.Fatalf("expected nothing emitted after reset, got %q", *chunks)
	}
}

func TestChunkerUsesCustomPolicy(t *testing.T) {
	everyThree := BoundaryFunc(func(text string) int {
		if len(text) >= 3 {
			return 3
		}
		return 0
	})
	chunker, chunks := collectChunks(everyThree)

	chunker.Append("abcdefgh")
	chunker.Flush()

	want := []string{"abc", "def", "gh"}
	if len(*chunks) != len(want) {
		t.Fatalf("expected %q, got %q", want, *chunks)
	}
	for i := range want {
		if (*chunks)[i].Text != want[i] {
			t.Fatalf("expected %q, got %q", want, *chunks)
		}
	}
}
