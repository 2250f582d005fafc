// Package rag indexes policy documents into the vector store and retrieves
// relevant passages for a query: chunk → embed → upsert on the way in,
// embed → similarity search on the way out.
package rag

import (
	"strings"
	"unicode/utf8"
)

// ChunkerConfig configures the text chunker.
type ChunkerConfig struct {
	ChunkSize    int // target chunk size in characters (default 512)
	ChunkOverlap int // overlap between chunks (default 50)
}

// DefaultChunkerConfig returns the defaults for recursive text splitting.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 512, ChunkOverlap: 50}
}

// Chunk is one piece of a split document.
type Chunk struct {
	Text  string
	Index int
}

// ChunkText splits text into overlapping chunks using recursive splitting:
// paragraph breaks first, then lines, sentences, words, and finally raw
// characters for pathological inputs.
func ChunkText(text string, config ChunkerConfig) []Chunk {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 512
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if utf8.RuneCountInString(text) <= config.ChunkSize {
		return []Chunk{{Text: text}}
	}

	separators := []string{"\n\n", "\n", ". ", " ", ""}
	chunks := recursiveSplit(text, separators, config.ChunkSize, config.ChunkOverlap)
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func recursiveSplit(text string, separators []string, chunkSize, overlap int) []Chunk {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []Chunk{{Text: text}}
	}

	// First separator that actually splits the text wins.
	var segments []string
	var usedSep string
	for _, sep := range separators {
		if sep == "" {
			segments = splitByRunes(text, chunkSize)
			break
		}
		if parts := strings.Split(text, sep); len(parts) > 1 {
			segments = parts
			usedSep = sep
			break
		}
	}
	if len(segments) == 0 {
		return []Chunk{{Text: text}}
	}

	// Merge segments back together up to the target size.
	var chunks []Chunk
	var current strings.Builder
	for _, seg := range segments {
		candidate := current.String()
		if candidate != "" {
			candidate += usedSep
		}
		candidate += seg

		if utf8.RuneCountInString(candidate) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, Chunk{Text: current.String()})

			// Seed the next chunk with the tail of this one.
			tail := overlapTail(current.String(), overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		} else {
			if current.Len() > 0 {
				current.WriteString(usedSep)
			}
			current.WriteString(seg)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Text: current.String()})
	}
	return chunks
}

// overlapTail returns the last n runes of s.
func overlapTail(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

func splitByRunes(text string, n int) []string {
	runes := []rune(text)
	var segments []string
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[i:end]))
	}
	return segments
}
