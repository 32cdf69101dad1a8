// Package chunker splits raw content into bounded-size pieces ready for embedding.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxChunkSize is the upper bound, in characters, for a single chunk.
// It keeps chunks under the input limit of the default embedding model.
const MaxChunkSize = 8000

// previewLength is the number of characters of the original input kept on every chunk.
const previewLength = 100

// ErrInvalidContent is returned when content cannot be parsed as its declared type.
var ErrInvalidContent = errors.New("invalid content")

// ContentType describes how raw content is reduced to plain text before splitting.
type ContentType string

const (
	Text     ContentType = "text"
	Markdown ContentType = "markdown"
	JSON     ContentType = "json"
)

// ParseContentType validates a content type name.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case Text, "":
		return Text, nil
	case Markdown:
		return Markdown, nil
	case JSON:
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown content type %q (use text, markdown or json)", s)
	}
}

// Metadata is the positional information attached to every chunk.
type Metadata struct {
	Fields      map[string]string // caller supplied
	ContentType ContentType
	ChunkIndex  int // zero-based
	TotalChunks int
	Preview     string // first characters of the untouched input
}

// Chunk is an in-flight piece of content awaiting embedding.
type Chunk struct {
	Text     string
	Metadata Metadata
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Split reduces content according to its type and splits it into ordered chunks.
// Empty content produces no chunks.
func Split(content string, contentType ContentType, fields map[string]string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var text string
	switch contentType {
	case Markdown:
		text = markdownToText(content)
	case JSON:
		flat, err := jsonToText(content)
		if err != nil {
			return nil, err
		}
		text = flat
	default:
		contentType = Text
		text = content
	}

	pieces := splitIntoChunks(text, MaxChunkSize)
	preview := truncate(content, previewLength)

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		meta := make(map[string]string, len(fields))
		for k, v := range fields {
			meta[k] = v
		}
		chunks[i] = Chunk{
			Text: piece,
			Metadata: Metadata{
				Fields:      meta,
				ContentType: contentType,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				Preview:     preview,
			},
		}
	}
	return chunks, nil
}

// splitIntoChunks greedily packs sentences into chunks of at most max characters.
// A sentence longer than max is packed word by word. A single word longer than
// max becomes its own chunk since boundaries never fall inside a word.
func splitIntoChunks(text string, max int) []string {
	var chunks []string
	var current string

	flush := func() {
		if c := strings.TrimSpace(current); c != "" {
			chunks = append(chunks, c)
		}
		current = ""
	}

	for _, sentence := range splitSentences(text) {
		if fits(current, sentence, max) {
			current = join(current, sentence)
			continue
		}
		flush()

		if length(sentence) <= max {
			current = sentence
			continue
		}

		for _, word := range strings.Fields(sentence) {
			if fits(current, word, max) {
				current = join(current, word)
				continue
			}
			flush()
			current = word
		}
	}
	flush()

	return chunks
}

// splitSentences splits after sentence-ending punctuation followed by whitespace.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func fits(current, next string, max int) bool {
	if current == "" {
		return length(next) <= max
	}
	return length(current)+1+length(next) <= max
}

func join(current, next string) string {
	if current == "" {
		return next
	}
	return current + " " + next
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
