// Package chunker splits scraped page text into bounded, overlapping chunks
// for relevance ranking.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kalorin/webseek/internal/model"
)

// Separator preference order: paragraph, line, sentence, word, hard cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// SplitPages chunks every page and tags each chunk with its source URL.
// Markdown-looking pages keep their heading context.
func (s *Splitter) SplitPages(pages []model.Page) []model.Chunk {
	var chunks []model.Chunk
	for _, page := range pages {
		var parts []string
		if looksLikeMarkdown(page.Content) {
			parts = s.SplitMarkdown(page.Content)
		} else {
			parts = s.Split(page.Content)
		}
		for _, part := range parts {
			chunks = append(chunks, model.Chunk{
				Content: part,
				Source:  page.Source,
			})
		}
	}
	return chunks
}

// Split cuts text into chunks of at most chunkSize characters, preferring
// paragraph and sentence boundaries, with chunkOverlap characters carried
// between adjacent chunks.
func (s *Splitter) Split(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return s.splitRecursive(content, separators)
}

func (s *Splitter) splitRecursive(content string, seps []string) []string {
	if utf8.RuneCountInString(content) <= s.chunkSize {
		return []string{content}
	}
	sep := ""
	rest := []string{}
	for i, cand := range seps {
		if cand == "" {
			break
		}
		if strings.Contains(content, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardCut(content)
	}

	parts := strings.Split(content, sep)
	var chunks []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(cur, sep))
		if chunk == "" {
			cur = nil
			curLen = 0
			return
		}
		if utf8.RuneCountInString(chunk) > s.chunkSize {
			chunks = append(chunks, s.splitRecursive(chunk, rest)...)
		} else {
			chunks = append(chunks, chunk)
		}
		tail := overlapTail(chunk, s.chunkOverlap)
		if tail != "" {
			cur = []string{tail}
			curLen = utf8.RuneCountInString(tail)
		} else {
			cur = nil
			curLen = 0
		}
	}
	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		if curLen > 0 && curLen+len(sep)+partLen > s.chunkSize {
			flush()
		}
		cur = append(cur, part)
		curLen += partLen
		if len(cur) > 1 {
			curLen += len(sep)
		}
	}
	flush()
	return chunks
}

func (s *Splitter) hardCut(content string) []string {
	runes := []rune(content)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func overlapTail(chunk string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= overlap {
		return ""
	}
	tail := string(runes[len(runes)-overlap:])
	// Cut at a word boundary so the overlap does not start mid-word.
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// SplitMarkdown splits by level 1-2 headings first and prefixes every chunk
// of a section with its heading, so ranking sees the section context.
func (s *Splitter) SplitMarkdown(markdown string) []string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var chunks []string
	var heading string
	var section []string

	flush := func() {
		if len(section) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(section, "\n\n"))
		section = nil
		if body == "" {
			return
		}
		for _, part := range s.Split(body) {
			if heading != "" {
				part = "Heading: " + heading + "\n" + part
			}
			chunks = append(chunks, part)
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level <= 2 {
				flush()
				heading = string(n.Text(reader.Source()))
				continue
			}
			section = append(section, string(n.Text(reader.Source())))
		default:
			if txt := extractText(node, reader.Source()); txt != "" {
				section = append(section, txt)
			}
		}
	}
	flush()
	return chunks
}

func looksLikeMarkdown(content string) bool {
	return strings.HasPrefix(content, "# ") ||
		strings.Contains(content, "\n# ") ||
		strings.Contains(content, "\n## ")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteString(" ")
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
