// Package chunk splits document text into bounded, heading-aware passages.
package chunk

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xxxsen/advisor/internal/model"
)

type Piece struct {
	Content    string
	Index      int
	TokenCount int
	Meta       model.ChunkMetadata
}

type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split walks the markdown structure and emits pieces bounded by c.size
// tokens. A level-1 or level-2 heading always starts a new piece, so no piece
// spans more than one top-level section. Oversized sections are split on
// paragraph boundaries with trailing-paragraph overlap; overlapped text stays
// attributed to exactly one canonical piece.
func (c *Chunker) Split(markdown string) []Piece {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	b := &builder{size: c.size, overlap: c.overlap}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			heading := headingText(h, reader.Source())
			if h.Level <= 2 {
				b.flush()
				b.setHeading(heading, h.Level)
				continue
			}
			b.add(heading)
			continue
		}
		txt := extractText(node, reader.Source())
		if txt == "" {
			continue
		}
		for _, para := range splitParagraphs(txt) {
			b.add(para)
		}
	}
	b.flush()
	return b.pieces
}

type builder struct {
	size    int
	overlap int

	pieces      []Piece
	current     []string
	tokens      int
	headingPath []string
	section     string
}

func (b *builder) setHeading(heading string, level int) {
	if level <= len(b.headingPath) {
		b.headingPath = b.headingPath[:level-1]
	}
	b.headingPath = append(b.headingPath, heading)
	b.section = heading
}

func (b *builder) add(para string) {
	t := estimateTokens(para)
	if b.tokens > 0 && b.tokens+t > b.size {
		b.flushWithOverlap()
	}
	b.current = append(b.current, para)
	b.tokens += t
}

func (b *builder) flush() {
	b.emit()
	b.current = nil
	b.tokens = 0
}

// flushWithOverlap emits the current piece and seeds the next one with
// trailing paragraphs up to the overlap budget, preserving context across the
// split boundary.
func (b *builder) flushWithOverlap() {
	b.emit()
	if b.overlap == 0 {
		b.current = nil
		b.tokens = 0
		return
	}
	carried := 0
	var keep []string
	for i := len(b.current) - 1; i >= 0; i-- {
		t := estimateTokens(b.current[i])
		if carried+t > b.overlap {
			break
		}
		carried += t
		keep = append([]string{b.current[i]}, keep...)
	}
	b.current = keep
	b.tokens = carried
}

func (b *builder) emit() {
	if len(b.current) == 0 {
		return
	}
	content := strings.Join(b.current, "\n\n")
	if b.section != "" {
		content = "Heading: " + b.section + "\n" + content
	}
	path := append([]string(nil), b.headingPath...)
	b.pieces = append(b.pieces, Piece{
		Content:    content,
		Index:      len(b.pieces),
		TokenCount: estimateTokens(content),
		Meta: model.ChunkMetadata{
			Section:     b.section,
			HeadingPath: path,
			Anchor:      anchorFor(path),
		},
	})
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var anchorClean = regexp.MustCompile(`[^\w\s-]`)

func anchorFor(path []string) string {
	if len(path) == 0 {
		return "content"
	}
	parts := make([]string, 0, len(path))
	for _, h := range path {
		clean := anchorClean.ReplaceAllString(h, "")
		clean = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(clean), " ", "-"))
		if clean != "" {
			parts = append(parts, clean)
		}
	}
	if len(parts) == 0 {
		return "content"
	}
	return strings.Join(parts, "/")
}

// estimateTokens counts words for ASCII text and characters for wide runes.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func headingText(h *ast.Heading, source []byte) string {
	return string(h.Text(source))
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
