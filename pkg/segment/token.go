package segment

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter returns the number of model tokens in text.
type TokenCounter func(text string) (int, error)

var (
	encoders   = map[string]*tiktoken.Tiktoken{}
	encodersMu sync.Mutex
)

// TiktokenCounter counts tokens with the named tiktoken encoding. The
// encoding is loaded lazily and shared across counters.
func TiktokenCounter(encoding string) TokenCounter {
	return func(text string) (int, error) {
		encodersMu.Lock()
		enc, ok := encoders[encoding]
		if !ok {
			var err error
			enc, err = tiktoken.GetEncoding(encoding)
			if err != nil {
				encodersMu.Unlock()
				return 0, err
			}
			encoders[encoding] = enc
		}
		encodersMu.Unlock()
		return len(enc.Encode(text, nil, nil)), nil
	}
}

// Tokens packs sentences greedily into chunks of at most MaxTokens tokens.
// Markdown tables are kept together as a single sentence.
func (s *Segmenter) Tokens(text string) ([]string, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []string
	var current []string

	for _, sentence := range sentences {
		if len(current) == 0 {
			current = append(current, sentence)
			continue
		}
		candidate := strings.Join(append(current, sentence), " ")
		n, err := s.countTokens(candidate)
		if err != nil {
			return nil, err
		}
		if n <= s.maxTokens {
			current = append(current, sentence)
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = []string{sentence}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks, nil
}

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Contains(trimmed, "|")
}

// splitIntoSentences joins wrapped lines, breaks on sentence terminators and
// blank lines, and keeps markdown tables (header plus delimiter row) intact.
func splitIntoSentences(text string) []string {
	lines := strings.Split(normalizeNewlines(text), "\n")

	var sentences []string
	var current strings.Builder
	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	addLine := func(line string) {
		for _, sentence := range splitLineIntoSentences(line) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)
			if endsSentence(sentence) {
				emit()
			}
		}
	}

	inTable := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case inTable && isTableRow(line):
			current.WriteString("\n")
			current.WriteString(line)
		case inTable:
			inTable = false
			emit()
			if trimmed != "" {
				addLine(trimmed)
			}
		case isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])):
			emit()
			inTable = true
			current.WriteString(line)
		case isTableRow(line):
			emit()
			sentences = append(sentences, trimmed)
		case trimmed == "":
			emit()
		default:
			addLine(trimmed)
		}
	}
	emit()

	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// splitLineIntoSentences breaks a single line after terminators, keeping
// trailing quotes and brackets with the sentence. "1. " style list markers
// do not end a sentence.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])
		if line[i] != '.' && line[i] != '!' && line[i] != '?' {
			continue
		}
		if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < len(line) && strings.IndexByte(".!?\"')]}", line[j]) >= 0 {
			current.WriteByte(line[j])
			j++
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
