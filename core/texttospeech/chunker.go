package texttospeech

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	DefaultMinClauseLength = 32
	DefaultMaxChunkLength  = 240
)

// TextChunk is a speakable piece of a text stream.
type TextChunk struct {
	Index int
	Text  string
}

// BoundaryPolicy decides where a text stream may be cut.
type BoundaryPolicy interface {
	// NextBoundary returns the length of the first complete chunk at the
	// start of text, or 0 when text holds no complete chunk yet.
	NextBoundary(text string) int
}

// BoundaryFunc adapts a function to a BoundaryPolicy.
type BoundaryFunc func(text string) int

func (f BoundaryFunc) NextBoundary(text string) int { return f(text) }

// PunctuationPolicy cuts after sentence punctuation followed by whitespace,
// after line breaks, and after clause punctuation once the chunk is long
// enough. Text longer than MaxLength without a boundary is cut at the last
// space.
type PunctuationPolicy struct {
	MinClauseLength int
	MaxLength       int
}

func DefaultPunctuationPolicy() PunctuationPolicy {
	return PunctuationPolicy{
		MinClauseLength: DefaultMinClauseLength,
		MaxLength:       DefaultMaxChunkLength,
	}
}

func (p PunctuationPolicy) NextBoundary(text string) int {
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			return skipSpace(text, i+1)

		case c == '.' || c == '!' || c == '?':
			end := skipClosers(text, i+1)
			if end >= len(text) || !isSpace(text[end]) {
				continue
			}
			if c == '.' && isAbbreviation(text, i) {
				continue
			}
			return skipSpace(text, end)

		case c == ',' || c == ';' || c == ':':
			if p.MinClauseLength <= 0 || i+1 < p.MinClauseLength {
				continue
			}
			if i+1 < len(text) && isSpace(text[i+1]) {
				return skipSpace(text, i+1)
			}
		}

		if p.MaxLength > 0 && i+1 >= p.MaxLength {
			return p.forcedBoundary(text)
		}
	}
	return 0
}

func (p PunctuationPolicy) forcedBoundary(text string) int {
	limit := min(p.MaxLength, len(text))
	if cut := strings.LastIndexAny(text[:limit], " \t"); cut > 0 {
		return skipSpace(text, cut+1)
	}
	for limit > 0 && limit < len(text) && !utf8.RuneStart(text[limit]) {
		limit--
	}
	if limit > 0 {
		return limit
	}
	_, size := utf8.DecodeRuneInString(text)
	return size
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func skipClosers(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case '"', '\'', ')', ']':
			i++
			continue
		}
		if strings.HasPrefix(text[i:], "”") || strings.HasPrefix(text[i:], "’") {
			i += len("”")
			continue
		}
		break
	}
	return i
}

var commonAbbreviations = []string{
	"Dr.", "Mr.", "Mrs.", "Ms.", "Jr.", "Sr.",
	"Prof.", "Rev.", "Gen.", "Col.", "Lt.", "Sgt.",
	"Inc.", "Ltd.", "Corp.", "Co.", "vs.", "etc.",
	"i.e.", "e.g.", "a.m.", "p.m.", "U.S.", "U.K.",
	"Sra.", "Srta.", "Av.", "approx.", "No.",
}

// isAbbreviation reports whether the period at i closes an abbreviation or
// a single-letter initial.
func isAbbreviation(s string, i int) bool {
	start := i
	for start > 0 && !isSpace(s[start-1]) {
		start--
	}
	word := s[start : i+1]

	for _, abbr := range commonAbbreviations {
		if strings.EqualFold(word, abbr) {
			return true
		}
	}

	return i-start == 1 && s[start] >= 'A' && s[start] <= 'Z'
}

// Chunker splits a streamed text into speakable chunks. Concatenating every
// emitted chunk reproduces the appended text exactly.
type Chunker struct {
	policy BoundaryPolicy
	emit   func(TextChunk)

	mu      sync.Mutex
	pending strings.Builder
	next    int
}

// NewChunker returns a chunker calling emit for every chunk, in order. emit
// is called with the chunker locked and must not call back into it. A nil
// policy uses DefaultPunctuationPolicy.
func NewChunker(policy BoundaryPolicy, emit func(TextChunk)) *Chunker {
	if policy == nil {
		policy = DefaultPunctuationPolicy()
	}
	return &Chunker{policy: policy, emit: emit}
}

// Append buffers text and emits every chunk that is now complete.
func (c *Chunker) Append(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending.WriteString(text)
	buffered := c.pending.String()
	consumed := 0
	for consumed < len(buffered) {
		n := c.policy.NextBoundary(buffered[consumed:])
		if n <= 0 {
			break
		}
		n = min(n, len(buffered)-consumed)
		c.emitLocked(buffered[consumed : consumed+n])
		consumed += n
	}
	if consumed > 0 {
		c.pending.Reset()
		c.pending.WriteString(buffered[consumed:])
	}
}

// Flush emits whatever is buffered as a final chunk and starts over.
func (c *Chunker) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Len() > 0 {
		c.emitLocked(c.pending.String())
	}
	c.pending.Reset()
	c.next = 0
}

// Reset discards buffered text without emitting it.
func (c *Chunker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending.Reset()
	c.next = 0
}

// Pending returns the buffered text that has not been emitted yet.
func (c *Chunker) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.String()
}

func (c *Chunker) emitLocked(text string) {
	chunk := TextChunk{Index: c.next, Text: text}
	c.next++
	if c.emit != nil {
		c.emit(chunk)
	}
}
