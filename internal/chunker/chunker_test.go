package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/kalorin/webseek/internal/model"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New(1000, 200)
	chunks := s.Split("just a short paragraph")
	require.Equal(t, []string{"just a short paragraph"}, chunks)
}

func TestSplitEmpty(t *testing.T) {
	s := New(100, 10)
	require.Empty(t, s.Split("   \n  "))
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 10)
	para2 := strings.Repeat("bravo ", 10)
	s := New(70, 0)
	chunks := s.Split(para1 + "\n\n" + para2)
	require.Len(t, chunks, 2)
	require.Contains(t, chunks[0], "alpha")
	require.NotContains(t, chunks[0], "bravo")
	require.Contains(t, chunks[1], "bravo")
}

func TestSplitRespectsChunkSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("some sentence about baggage allowances and fees. ")
	}
	s := New(200, 40)
	chunks := s.Split(sb.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, utf8.RuneCountInString(chunk), 200)
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("sentence number words fill space here. ")
	}
	s := New(150, 50)
	chunks := s.Split(sb.String())
	require.Greater(t, len(chunks), 1)
	// The tail of chunk i must reappear at the head of chunk i+1.
	tail := chunks[0][len(chunks[0])-20:]
	require.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestHardCutUnbreakableText(t *testing.T) {
	s := New(50, 10)
	chunks := s.Split(strings.Repeat("x", 180))
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 50)
	}
}

func TestSplitPagesTagsSource(t *testing.T) {
	s := New(1000, 100)
	pages := []model.Page{
		{Source: "https://example.com/a", Content: "page a content"},
		{Source: "https://example.com/b", Content: "page b content"},
	}
	chunks := s.SplitPages(pages)
	require.Len(t, chunks, 2)
	require.Equal(t, "https://example.com/a", chunks[0].Source)
	require.Equal(t, "https://example.com/b", chunks[1].Source)
}

func TestSplitMarkdownKeepsHeadingContext(t *testing.T) {
	md := "# Baggage\n\nChecked bags start at $30.\n\n## Carry-on\n\nOne personal item is free.\n"
	s := New(1000, 0)
	chunks := s.SplitMarkdown(md)
	require.Len(t, chunks, 2)
	require.Contains(t, chunks[0], "Heading: Baggage")
	require.Contains(t, chunks[0], "$30")
	require.Contains(t, chunks[1], "Heading: Carry-on")
}

func TestLooksLikeMarkdown(t *testing.T) {
	require.True(t, looksLikeMarkdown("# Title\nbody"))
	require.True(t, looksLikeMarkdown("intro\n## Section\nbody"))
	require.False(t, looksLikeMarkdown("plain text only"))
}
