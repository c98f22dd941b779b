// Package chunk splits document bodies into bounded segments before
// embedding, with Paragraph/Sentence/Fixed strategies.
package chunk

import (
	"fmt"
	"strings"

	"github.com/tripartite-ai/consensus-core/internal/config"
)

// Chunk is a bounded slice of a document. Offsets are byte offsets into the
// owning document's content, and len(Content) == End-Start always holds.
type Chunk struct {
	Content string
	Start   int
	End     int
}

// Strategy is a chunking algorithm identifier.
type Strategy string

const (
	StrategyParagraph Strategy = "paragraph"
	StrategySentence  Strategy = "sentence"
	StrategyFixed     Strategy = "fixed"
)

// InvalidStrategyError is returned when an unrecognized strategy name is
// requested at runtime.
type InvalidStrategyError struct {
	Strategy string
}

func (e *InvalidStrategyError) Error() string {
	return fmt.Sprintf("unknown chunk strategy %q", e.Strategy)
}

// Split divides content into chunks per cfg.Strategy. A document whose
// length does not exceed cfg.MinChunkFloor is always emitted as a single
// chunk, never zero chunks — tiny documents must stay retrievable.
func Split(content string, cfg config.ChunkConfig) ([]Chunk, error) {
	if len(content) == 0 {
		return nil, nil
	}
	if len(content) <= cfg.MinChunkFloor {
		return []Chunk{{Content: content, Start: 0, End: len(content)}}, nil
	}

	switch Strategy(cfg.Strategy) {
	case StrategyParagraph, "":
		return splitParagraph(content, cfg.ParagraphOverlap, cfg.MinChunkFloor), nil
	case StrategySentence:
		return splitSentence(content, cfg.MinChunkFloor), nil
	case StrategyFixed:
		return splitFixed(content, cfg.FixedSize, cfg.FixedOverlap), nil
	default:
		return nil, &InvalidStrategyError{Strategy: cfg.Strategy}
	}
}

// splitParagraph splits on runs of blank lines, then stitches back a
// character overlap from the tail of each chunk onto the head of the next
// so retrieval windows that straddle a paragraph boundary still have
// context. The contract: concatenating chunks in order, after trimming the
// declared overlap back off, reconstructs the document.
func splitParagraph(content string, overlap, floor int) []Chunk {
	paras := splitBlankLineRuns(content)
	if len(paras) <= 1 {
		return mergeByFloor(paras, content, floor)
	}
	return overlapParagraphs(paras, content, overlap, floor)
}

type paraSpan struct {
	start, end int
}

// splitBlankLineRuns locates each non-blank paragraph's byte span within
// content, preserving the gaps (the blank-line runs) as part of the
// preceding paragraph's trailing span so that consecutive spans remain
// contiguous and re-concatenation is lossless.
func splitBlankLineRuns(content string) []paraSpan {
	var spans []paraSpan
	n := len(content)
	i := 0
	start := 0
	inBlankRun := false
	blankCount := 0
	for i < n {
		lineEnd := strings.IndexByte(content[i:], '\n')
		var line string
		var next int
		if lineEnd < 0 {
			line = content[i:]
			next = n
		} else {
			line = content[i : i+lineEnd]
			next = i + lineEnd + 1
		}
		if strings.TrimSpace(line) == "" {
			blankCount++
			inBlankRun = true
		} else {
			if inBlankRun && blankCount > 0 {
				spans = append(spans, paraSpan{start: start, end: i})
				start = i
			}
			inBlankRun = false
			blankCount = 0
		}
		i = next
	}
	spans = append(spans, paraSpan{start: start, end: n})
	return spans
}

func mergeByFloor(spans []paraSpan, content string, floor int) []Chunk {
	if len(spans) == 0 {
		return nil
	}
	var out []Chunk
	cur := spans[0]
	for _, s := range spans[1:] {
		if cur.end-cur.start < floor {
			cur.end = s.end
			continue
		}
		out = append(out, Chunk{Content: content[cur.start:cur.end], Start: cur.start, End: cur.end})
		cur = s
	}
	out = append(out, Chunk{Content: content[cur.start:cur.end], Start: cur.start, End: cur.end})
	return out
}

// overlapParagraphs widens each chunk's declared window with a leading
// character overlap pulled from the previous chunk's tail, after first
// merging runs that fall below floor. The underlying spans remain
// contiguous in content — only the returned Content strings overlap — so
// the reconstruction property holds by trimming the first `overlap`
// characters off every chunk after the first.
func overlapParagraphs(spans []paraSpan, content string, overlap, floor int) []Chunk {
	merged := mergeByFloor(spans, content, floor)
	if overlap <= 0 || len(merged) <= 1 {
		return merged
	}
	out := make([]Chunk, len(merged))
	out[0] = merged[0]
	for i := 1; i < len(merged); i++ {
		prev := merged[i-1]
		lead := overlap
		if lead > prev.End-prev.Start {
			lead = prev.End - prev.Start
		}
		leadStart := prev.End - lead
		out[i] = Chunk{
			Content: content[leadStart:merged[i].End],
			Start:   leadStart,
			End:     merged[i].End,
		}
	}
	return out
}

// sentenceEnders are the punctuation marks considered sentence boundaries.
// A following run of closing quotes/parens is absorbed into the boundary.
var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}

// commonAbbreviations lists trailing tokens ending in a period that do not
// terminate a sentence, so "Dr. Smith" does not split mid-name.
var commonAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "vs": true, "etc": true, "inc": true,
	"ltd": true, "co": true, "e.g": true, "i.e": true,
}

// splitSentence splits on sentence terminators, respecting the common
// abbreviation list, then merges runs below floor the same way paragraph
// splitting does.
func splitSentence(content string, floor int) []Chunk {
	var spans []paraSpan
	start := 0
	n := len(content)
	for i := 0; i < n; i++ {
		if !sentenceEnders[content[i]] {
			continue
		}
		j := i + 1
		for j < n && (content[j] == '"' || content[j] == '\'' || content[j] == ')' || content[j] == ']') {
			j++
		}
		if j < n && content[j] != ' ' && content[j] != '\n' && content[j] != '\t' {
			continue
		}
		if isAbbreviation(content[start:i]) {
			continue
		}
		for j < n && (content[j] == ' ' || content[j] == '\n' || content[j] == '\t') {
			j++
		}
		spans = append(spans, paraSpan{start: start, end: j})
		start = j
		i = j - 1
	}
	if start < n {
		spans = append(spans, paraSpan{start: start, end: n})
	}
	return mergeByFloor(spans, content, floor)
}

func isAbbreviation(preceding string) bool {
	fields := strings.Fields(preceding)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(strings.TrimFunc(fields[len(fields)-1], func(r rune) bool {
		return r == '"' || r == '\'' || r == '('
	}))
	return commonAbbreviations[last]
}

// splitFixed splits content into windows of size whitespace-delimited
// tokens with overlap tokens repeated between adjacent windows. Size is
// token-approximate, counted via whitespace splitting rather than a real
// tokenizer.
func splitFixed(content string, size, overlap int) []Chunk {
	if size <= 0 {
		size = 200
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	type tok struct{ start, end int }
	var toks []tok
	n := len(content)
	i := 0
	for i < n {
		for i < n && isSpace(content[i]) {
			i++
		}
		if i >= n {
			break
		}
		s := i
		for i < n && !isSpace(content[i]) {
			i++
		}
		toks = append(toks, tok{start: s, end: i})
	}
	if len(toks) == 0 {
		return []Chunk{{Content: content, Start: 0, End: n}}
	}

	var out []Chunk
	step := size - overlap
	if step <= 0 {
		step = size
	}
	for lo := 0; lo < len(toks); lo += step {
		hi := lo + size
		if hi > len(toks) {
			hi = len(toks)
		}
		start := toks[lo].start
		end := toks[hi-1].end
		out = append(out, Chunk{Content: content[start:end], Start: start, End: end})
		if hi == len(toks) {
			break
		}
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
