package segment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/loader"
	loaderio "github.com/OFFIS-RIT/graphrag/pkg/loader/io"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func wordCounter(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func newTestSegmenter(t *testing.T, size, overlap int) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(NewSegmenterParams{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		MaxTokens:    4,
		TokenCounter: wordCounter,
	})
	require.NoError(t, err)
	return s
}

func TestFixedWidth(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "no overlap",
			text: "Hello world. This is a test.",
			size: 10,
			want: []string{"Hello worl", "d. This is", " a test."},
		},
		{
			name:    "with overlap",
			text:    "abcdefghij",
			size:    4,
			overlap: 2,
			want:    []string{"abcd", "cdef", "efgh", "ghij", "ij"},
		},
		{
			name: "multi-byte runes",
			text: "éàèâä",
			size: 2,
			want: []string{"éà", "èâ", "ä"},
		},
		{
			name: "empty input",
			text: "",
			size: 10,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FixedWidth(tt.text, tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("FixedWidth() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FixedWidth() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFixedWidthRejectsWindow(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{{10, 10}, {10, 11}, {10, -1}, {0, 0}} {
		_, err := FixedWidth("text", tc.size, tc.overlap)
		assert.True(t, errors.Is(err, common.ErrConfiguration), "size=%d overlap=%d", tc.size, tc.overlap)
	}

	_, err := NewSegmenter(NewSegmenterParams{ChunkSize: 100, ChunkOverlap: 100})
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestRepack(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
		size   int
		want   []string
	}{
		{
			name:   "joins while below size",
			pieces: []string{"aaaa", "bbbb", "cc"},
			size:   10,
			want:   []string{"aaaa bbbb", "cc"},
		},
		{
			name:   "oversized piece stands alone",
			pieces: []string{strings.Repeat("x", 20), "y"},
			size:   10,
			want:   []string{strings.Repeat("x", 20), "y"},
		},
		{
			name:   "empty pieces skipped",
			pieces: []string{"", "  ", "a", "\n"},
			size:   10,
			want:   []string{"a"},
		},
		{
			name:   "nothing to pack",
			pieces: nil,
			size:   10,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repack(tt.pieces, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Repack() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStrategies(t *testing.T) {
	s := newTestSegmenter(t, 1000, 0)

	got, err := s.Split("First one. Second one!  Third one? tail", StrategySentence)
	require.NoError(t, err)
	assert.Equal(t, []string{"First one. Second one! Third one? tail"}, got)

	small := newTestSegmenter(t, 12, 0)
	got, err = small.Split("First one. Second one! Third one?", StrategySentence)
	require.NoError(t, err)
	assert.Equal(t, []string{"First one.", "Second one!", "Third one?"}, got)

	got, err = small.Split("Para one.\n\nPara two.\r\n\r\nPara three.", StrategyParagraph)
	require.NoError(t, err)
	assert.Equal(t, []string{"Para one.", "Para two.", "Para three."}, got)

	got, err = s.Split("line a\nline b\n\nline c", StrategyLine)
	require.NoError(t, err)
	assert.Equal(t, []string{"line a line b line c"}, got)

	got, err = s.Split("a.b\nc•d", StrategyRecursive)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c d"}, got)

	got, err = s.Recursive("a;b;c", []string{";"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c"}, got)

	_, err = s.Split("text", Strategy("words"))
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestEmptyTextEveryStrategy(t *testing.T) {
	s := newTestSegmenter(t, 10, 2)
	for _, strategy := range append(AllStrategies, StrategyToken) {
		got, err := s.Split("", strategy)
		require.NoError(t, err, strategy)
		assert.Empty(t, got, strategy)
	}
}

func TestTokens(t *testing.T) {
	s := newTestSegmenter(t, 1000, 0)

	got, err := s.Tokens("One two. Three four. Five.")
	require.NoError(t, err)
	assert.Equal(t, []string{"One two. Three four.", "Five."}, got)

	got, err = s.Tokens("A single sentence that is far longer than the budget.")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	failing, err := NewSegmenter(NewSegmenterParams{
		ChunkSize:    100,
		TokenCounter: func(string) (int, error) { return 0, errors.New("boom") },
	})
	require.NoError(t, err)
	_, err = failing.Tokens("One. Two.")
	assert.Error(t, err)
}

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{"Hello world.", "This is a test!", "How are you?"},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "text with table",
			text: "Introduction text.\nHeader1 | Header2\n------- | -------\nValue1  | Value2\nConclusion text.",
			want: []string{
				"Introduction text.",
				"Header1 | Header2\n------- | -------\nValue1  | Value2",
				"Conclusion text.",
			},
		},
		{
			name: "table without delimiter",
			text: "Header1 | Header2\nValue1  | Value2",
			want: []string{"Header1 | Header2", "Value1  | Value2"},
		},
		{
			name: "numbered list marker",
			text: "Step 1. Open the door.",
			want: []string{"Step 1. Open the door."},
		},
		{
			name: "closing quote stays",
			text: `He said "stop." Then left.`,
			want: []string{`He said "stop."`, "Then left."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	s := newTestSegmenter(t, 10, 0)

	stats := s.Preview("Hello world. This is a test.", StrategyCharacter, Strategy("unknown"))
	assert.Equal(t, map[Strategy]Stats{StrategyCharacter: {NChunks: 3, AvgSize: 9}}, stats)

	all := s.Preview("")
	assert.Len(t, all, len(AllStrategies))
	for _, st := range all {
		assert.Equal(t, Stats{}, st)
	}
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, StrategySentence, Suggest("short"))
	assert.Equal(t, StrategyParagraph, Suggest(strings.Repeat("a", 2000)))
	assert.Equal(t, StrategyRecursive, Suggest(strings.Repeat("a", 10000)))
}

func TestParseStrategy(t *testing.T) {
	got, err := ParseStrategy(" Sentence ")
	require.NoError(t, err)
	assert.Equal(t, StrategySentence, got)

	_, err = ParseStrategy("semantic")
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestBuildMetadata(t *testing.T) {
	chunks := []string{"abc", "de", "fgh"}

	meta := BuildMetadata(chunks, "/data/extracted/doc.pdf", 0, 0)
	require.Len(t, meta, 3)
	assert.Equal(t, "doc.pdf_chunk_1", meta[0].ID)
	assert.Equal(t, "doc.pdf_chunk_3", meta[2].ID)
	assert.Equal(t, 3, meta[1].StartChar)
	assert.Equal(t, 5, meta[1].EndChar)
	assert.Equal(t, "/data/extracted/doc.pdf", meta[2].SourceDoc)

	assert.Len(t, BuildMetadata(chunks, "doc", 2, 0), 2)
	assert.Len(t, BuildMetadata(chunks, "doc", 0, 5), 2)
	assert.Empty(t, BuildMetadata(chunks, "doc", 0, 2))
}

func TestSegmentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Para one.\n\nPara two."), 0o644))

	s := newTestSegmenter(t, 10, 0)
	file := loader.NewGraphFile("doc", loader.ExtractedFile{Path: path}, loaderio.NewIOGraphFileLoader())

	got, err := s.SegmentFile(context.Background(), file, StrategyParagraph)
	require.NoError(t, err)
	assert.Equal(t, []string{"Para one.", "Para two."}, got)
}

func TestFixedWidthProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		size := rapid.IntRange(1, 40).Draw(t, "size")
		overlap := rapid.IntRange(0, size-1).Draw(t, "overlap")

		chunks, err := FixedWidth(text, size, overlap)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		runes := []rune(text)
		step := size - overlap
		for k, c := range chunks {
			start := k * step
			end := min(start+size, len(runes))
			if c != string(runes[start:end]) {
				t.Fatalf("chunk %d = %q, want %q", k, c, string(runes[start:end]))
			}
			if utf8.RuneCountInString(c) > size {
				t.Fatalf("chunk %d longer than %d", k, size)
			}
		}
		if len(runes) == 0 {
			if len(chunks) != 0 {
				t.Fatalf("expected no chunks for empty text")
			}
			return
		}
		last := (len(chunks) - 1) * step
		if last+utf8.RuneCountInString(chunks[len(chunks)-1]) != len(runes) {
			t.Fatalf("chunks do not reach the end of the text")
		}
		if overlap == 0 && strings.Join(chunks, "") != string(runes) {
			t.Fatalf("chunks do not reconstruct the text")
		}
	})
}

func TestRepackProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pieces := rapid.SliceOf(rapid.StringMatching(`[a-z ]{0,15}`)).Draw(t, "pieces")
		size := rapid.IntRange(1, 30).Draw(t, "size")

		trimmed := map[string]bool{}
		for _, p := range pieces {
			trimmed[strings.TrimSpace(p)] = true
		}

		for _, c := range Repack(pieces, size) {
			if c == "" || strings.TrimSpace(c) != c {
				t.Fatalf("chunk %q is empty or untrimmed", c)
			}
			if utf8.RuneCountInString(c) >= size && !trimmed[c] {
				t.Fatalf("chunk %q reaches size %d but is not a single piece", c, size)
			}
		}
	})
}
