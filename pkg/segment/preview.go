package segment

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"
)

// Stats summarizes the outcome of one strategy.
type Stats struct {
	NChunks int `json:"n_chunks"`
	AvgSize int `json:"avg_size"`
}

// Preview runs each strategy over text and reports the chunk count and the
// integer mean chunk length. With no strategies given, AllStrategies are
// used. Strategies that fail are left out of the result.
func (s *Segmenter) Preview(text string, strategies ...Strategy) map[Strategy]Stats {
	if len(strategies) == 0 {
		strategies = AllStrategies
	}

	out := make(map[Strategy]Stats, len(strategies))
	for _, strategy := range strategies {
		chunks, err := s.Split(text, strategy)
		if err != nil {
			continue
		}
		out[strategy] = statsOf(chunks)
	}
	return out
}

func statsOf(chunks []string) Stats {
	if len(chunks) == 0 {
		return Stats{}
	}
	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c)
	}
	return Stats{NChunks: len(chunks), AvgSize: total / len(chunks)}
}

// Suggest picks a strategy from the length of text.
func Suggest(text string) Strategy {
	n := utf8.RuneCountInString(text)
	switch {
	case n < 2000:
		return StrategySentence
	case n < 10000:
		return StrategyParagraph
	default:
		return StrategyRecursive
	}
}

// ChunkMetadata describes one chunk and its character span within the
// concatenated chunk sequence.
type ChunkMetadata struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	SourceDoc string `json:"source_doc"`
}

// BuildMetadata numbers chunks as <basename>_chunk_<n>. A positive limit caps
// the number of entries and a positive maxSize caps the total characters;
// the first chunk that would exceed maxSize stops the walk.
func BuildMetadata(chunks []string, sourceDoc string, limit, maxSize int) []ChunkMetadata {
	base := filepath.Base(sourceDoc)

	var (
		meta  []ChunkMetadata
		pos   int
		total int
	)
	for i, chunk := range chunks {
		if limit > 0 && i >= limit {
			break
		}
		n := utf8.RuneCountInString(chunk)
		if maxSize > 0 && total+n > maxSize {
			break
		}
		meta = append(meta, ChunkMetadata{
			ID:        fmt.Sprintf("%s_chunk_%d", base, i+1),
			Text:      chunk,
			StartChar: pos,
			EndChar:   pos + n,
			SourceDoc: sourceDoc,
		})
		pos += n
		total += n
	}
	return meta
}
