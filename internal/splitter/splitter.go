// Package splitter cuts page text into overlapping fragments of bounded
// size, preferring splits at natural boundaries.
package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdf-rag/internal/models"
)

// Splitter produces fragments of at most chunkSize bytes, with consecutive
// fragments sharing up to chunkOverlap bytes of context.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New validates the chunking parameters. An overlap at or above the chunk
// size can never make progress and is rejected outright.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			chunkOverlap, chunkSize)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   models.Separators,
	}, nil
}

// Split cuts content into ordered fragments. Each fragment is at most
// chunkSize long; window boundaries prefer the highest-priority separator
// present near the end of the window and fall back to a hard cut. The next
// window starts chunkOverlap before the previous one ended.
func (s *Splitter) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	contentLen := len(content)
	if contentLen <= s.chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := start + s.chunkSize
		if end >= contentLen {
			end = contentLen
		} else {
			end = s.findBreak(content, start, end)
		}

		chunk := content[start:end]
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == contentLen {
			break
		}
		next := end - s.chunkOverlap
		if next <= start {
			// window shrank below the overlap; force progress
			next = start + 1
		}
		next = alignRune(content, next)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// findBreak picks the cut position for a window [start, start+chunkSize).
// It scans the separator list in priority order and takes the last
// occurrence inside the window, cutting after the separator. With no
// separator present the window is cut hard at a rune boundary.
func (s *Splitter) findBreak(content string, start, end int) int {
	end = alignRune(content, end)
	window := content[start:end]
	for _, sep := range s.separators {
		if sep == "" {
			break
		}
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	return end
}

// SplitPages runs Split over every page of one document and stamps each
// fragment with the page it was drawn from. Pages with no text contribute
// no fragments.
func (s *Splitter) SplitPages(pages []models.Page) []models.Fragment {
	var fragments []models.Fragment
	for _, page := range pages {
		for _, chunk := range s.Split(page.Text) {
			fragments = append(fragments, models.Fragment{
				Text:   chunk,
				Source: page.Source,
				Page:   page.Page,
			})
		}
	}
	return fragments
}

// alignRune moves pos back to the nearest utf8 rune boundary so byte-based
// cuts never land mid-rune.
func alignRune(content string, pos int) int {
	for pos > 0 && pos < len(content) && !utf8.RuneStart(content[pos]) {
		pos--
	}
	return pos
}
