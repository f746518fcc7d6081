package segment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
)

// Strategy selects how text is split into chunks.
type Strategy string

const (
	StrategyCharacter Strategy = "character"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyLine      Strategy = "line"
	StrategyRecursive Strategy = "recursive"
	StrategyToken     Strategy = "token"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultMaxTokens    = 500
	DefaultTokenEncoder = "o200k_base"
)

// DefaultSeparators are used by the recursive strategy when none are given.
var DefaultSeparators = []string{"\n", ".", "•", "،"}

// AllStrategies lists the character based strategies run by Preview by default.
var AllStrategies = []Strategy{
	StrategyCharacter,
	StrategySentence,
	StrategyParagraph,
	StrategyLine,
	StrategyRecursive,
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case StrategyCharacter, StrategySentence, StrategyParagraph, StrategyLine, StrategyRecursive, StrategyToken:
		return s, nil
	}
	return "", common.NewConfigurationError("segment.ParseStrategy", "unknown strategy %q", name)
}

// Segmenter splits text into bounded chunks. It performs no I/O apart from
// SegmentFile, which reads through a loader.
//
// A Segmenter should be created using NewSegmenter.
type Segmenter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	separatorRe  *regexp.Regexp
	maxTokens    int
	countTokens  TokenCounter
}

// NewSegmenterParams configures a Segmenter. Zero values select the defaults,
// except ChunkOverlap where zero means no overlap. Start from DefaultParams
// to get the default overlap.
type NewSegmenterParams struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	MaxTokens    int
	TokenEncoder string
	TokenCounter TokenCounter
}

// DefaultParams returns the parameters used when nothing is configured:
// 1000 characters per chunk with 100 characters of overlap.
func DefaultParams() NewSegmenterParams {
	return NewSegmenterParams{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
		MaxTokens:    DefaultMaxTokens,
		TokenEncoder: DefaultTokenEncoder,
	}
}

// NewSegmenter validates params and creates a Segmenter.
//
// The overlap must satisfy 0 <= overlap < chunk size, otherwise the fixed
// width window would never advance.
func NewSegmenter(params NewSegmenterParams) (*Segmenter, error) {
	size := params.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	if err := validateWindow(size, params.ChunkOverlap); err != nil {
		return nil, err
	}

	seps := params.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	re, err := separatorPattern(seps)
	if err != nil {
		return nil, err
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	counter := params.TokenCounter
	if counter == nil {
		encoder := params.TokenEncoder
		if encoder == "" {
			encoder = DefaultTokenEncoder
		}
		counter = TiktokenCounter(encoder)
	}

	return &Segmenter{
		chunkSize:    size,
		chunkOverlap: params.ChunkOverlap,
		separators:   seps,
		separatorRe:  re,
		maxTokens:    maxTokens,
		countTokens:  counter,
	}, nil
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return common.NewConfigurationError("segment", "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return common.NewConfigurationError("segment", "chunk overlap must satisfy 0 <= overlap < %d, got %d", size, overlap)
	}
	return nil
}

func separatorPattern(seps []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(seps))
	for _, s := range seps {
		if s == "" {
			return nil, common.NewConfigurationError("segment", "empty separator")
		}
		quoted = append(quoted, regexp.QuoteMeta(s))
	}
	return regexp.Compile(strings.Join(quoted, "|"))
}

func (s *Segmenter) ChunkSize() int    { return s.chunkSize }
func (s *Segmenter) ChunkOverlap() int { return s.chunkOverlap }

// Split dispatches to the given strategy.
func (s *Segmenter) Split(text string, strategy Strategy) ([]string, error) {
	switch strategy {
	case StrategyCharacter:
		return FixedWidth(text, s.chunkSize, s.chunkOverlap)
	case StrategySentence:
		return s.Sentences(text), nil
	case StrategyParagraph:
		return s.Paragraphs(text), nil
	case StrategyLine:
		return s.Lines(text), nil
	case StrategyRecursive:
		return s.Recursive(text, nil)
	case StrategyToken:
		return s.Tokens(text)
	}
	return nil, common.NewConfigurationError("segment.Split", "unknown strategy %q", strategy)
}

// FixedWidth emits windows of size runes, advancing by size-overlap. The
// final window may be shorter than size.
func FixedWidth(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks, nil
}

// Sentences splits after '.', '!' or '?' followed by spaces and repacks.
func (s *Segmenter) Sentences(text string) []string {
	return Repack(splitAfterTerminators(text), s.chunkSize)
}

// Paragraphs splits on blank lines and repacks.
func (s *Segmenter) Paragraphs(text string) []string {
	return Repack(strings.Split(normalizeNewlines(text), "\n\n"), s.chunkSize)
}

// Lines splits on line breaks and repacks.
func (s *Segmenter) Lines(text string) []string {
	return Repack(strings.Split(normalizeNewlines(text), "\n"), s.chunkSize)
}

// Recursive splits on any of the separators and repacks. A nil separators
// slice uses the separators the Segmenter was built with.
func (s *Segmenter) Recursive(text string, separators []string) ([]string, error) {
	re := s.separatorRe
	if len(separators) > 0 {
		var err error
		re, err = separatorPattern(separators)
		if err != nil {
			return nil, err
		}
	}
	return Repack(re.Split(text, -1), s.chunkSize), nil
}

// Repack greedily joins adjacent pieces with a single space while the chunk
// stays below size characters. A piece that would overflow starts a new
// chunk; a piece larger than size becomes its own chunk. Empty pieces are
// skipped and empty chunks are never emitted.
func Repack(pieces []string, size int) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if c := strings.TrimSpace(cur.String()); c != "" {
			chunks = append(chunks, c)
		}
		cur.Reset()
		curLen = 0
	}

	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		n := utf8.RuneCountInString(piece)
		if curLen+n >= size {
			flush()
		}
		cur.WriteString(piece)
		cur.WriteByte(' ')
		curLen += n + 1
	}
	flush()

	return chunks
}

func splitAfterTerminators(text string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j == i+1 {
			continue
		}
		pieces = append(pieces, text[start:i+1])
		start = j
		i = j - 1
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// SegmentFile reads an extracted text file through its loader and splits it.
func (s *Segmenter) SegmentFile(ctx context.Context, file loader.GraphFile, strategy Strategy) ([]string, error) {
	text, err := file.GetText(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.FilePath, err)
	}
	return s.Split(string(text), strategy)
}
