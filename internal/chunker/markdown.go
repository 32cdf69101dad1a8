package chunker

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	md      = goldmark.New()
	htmlTag = regexp.MustCompile(`<[^>]*>`)
)

// markdownToText strips markup and tags from markdown and collapses whitespace.
func markdownToText(content string) string {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			writeLines(&sb, n, src)
		case *ast.HTMLBlock:
			var block strings.Builder
			writeLines(&block, n, src)
			sb.WriteString(htmlTag.ReplaceAllString(block.String(), " "))
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(htmlTag.ReplaceAllString(sb.String(), " ")), " ")
}

func writeLines(sb *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
		sb.WriteByte(' ')
	}
}
