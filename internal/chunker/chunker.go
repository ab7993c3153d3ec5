package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxChars = 1024

// CharChunker splits text into chunks of at most maxChars runes. Chunk
// boundaries prefer sentence ends; a sentence longer than the limit is cut
// by rune count. A text that fits is returned unchanged as a single chunk.
type CharChunker struct {
	maxChars int
	splitter *regexp.Regexp
}

func NewCharChunker(maxChars int) *CharChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &CharChunker{
		maxChars: maxChars,
		splitter: regexp.MustCompile(`[^.!?]*[.!?]+\s*`),
	}
}

func (c *CharChunker) MaxChars() int { return c.maxChars }

// Chunk returns the chunks in original order. Concatenating them yields the
// input minus any whitespace-only pieces.
func (c *CharChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.maxChars {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		curLen = 0
	}
	for _, seg := range c.segments(text) {
		n := utf8.RuneCountInString(seg)
		switch {
		case n > c.maxChars:
			flush()
			pieces := splitRunes(seg, c.maxChars)
			for _, p := range pieces[:len(pieces)-1] {
				cur.WriteString(p)
				flush()
			}
			last := pieces[len(pieces)-1]
			cur.WriteString(last)
			curLen = utf8.RuneCountInString(last)
		case curLen+n > c.maxChars:
			flush()
			cur.WriteString(seg)
			curLen = n
		default:
			cur.WriteString(seg)
			curLen += n
		}
	}
	flush()
	return chunks
}

// segments cuts text into sentences, each keeping its trailing whitespace.
func (c *CharChunker) segments(text string) []string {
	var out []string
	prev := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		if loc[0] > prev {
			out = append(out, text[prev:loc[0]])
		}
		if loc[1] > loc[0] {
			out = append(out, text[loc[0]:loc[1]])
		}
		prev = loc[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}

func splitRunes(s string, size int) []string {
	var out []string
	for s != "" {
		i, n := 0, 0
		for i < len(s) && n < size {
			_, w := utf8.DecodeRuneInString(s[i:])
			i += w
			n++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}
