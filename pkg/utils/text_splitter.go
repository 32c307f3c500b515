package utils

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators go from paragraph to character, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveTextSplitter cuts text on the coarsest separator that keeps pieces
// under ChunkSize, recursing into finer separators only for pieces that are
// still too long, then greedily merges neighbours back up to ChunkSize with
// ChunkOverlap characters carried between consecutive chunks.
// Lengths are counted in runes. Separators stay attached to the start of the
// piece that follows them.
type RecursiveTextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewRecursiveTextSplitter(chunkSize, chunkOverlap int) *RecursiveTextSplitter {
	if chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveTextSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// SplitText splits a long string into chunks of at most ChunkSize runes where
// the separators allow it. Whitespace-only chunks are dropped.
func (s *RecursiveTextSplitter) SplitText(text string) []string {
	separators := s.Separators
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return s.split(text, separators)
}

func (s *RecursiveTextSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var chunks []string
	var pending []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

func splitKeepingSeparator(text, separator string) []string {
	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	for i, p := range parts {
		if i > 0 {
			p = separator + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// merge joins small pieces into chunks, sliding a window so that roughly
// ChunkOverlap runes repeat at the start of the next chunk.
func (s *RecursiveTextSplitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	var windowLens []int
	total := 0

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.ChunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > s.ChunkOverlap || total+n > s.ChunkSize) {
				total -= windowLens[0]
				window = window[1:]
				windowLens = windowLens[1:]
			}
		}
		window = append(window, piece)
		windowLens = append(windowLens, n)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
