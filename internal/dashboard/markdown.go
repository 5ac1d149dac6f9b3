package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	codeStyle    = dimStyle
)

// RenderMarkdown renders md as terminal text wrapped to width. Soft line
// breaks reflow, headings are bold and lists keep their bullets.
func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	src := []byte(md)
	r := &mdRenderer{src: src, width: max(width, 20)}
	ast.Walk(markdown.Parser().Parse(text.NewReader(src)), r.walk)
	return strings.TrimRight(r.out.String(), "\n")
}

type mdList struct {
	ordered bool
	next    int
	tight   bool
	pad     []int
}

// mdRenderer collects inline content per block and wraps it when the block
// closes, so wrapping sees the whole paragraph.
type mdRenderer struct {
	src    []byte
	width  int
	out    strings.Builder
	inline strings.Builder

	bold, italic int
	lists        []mdList
	indent       string
	bullet       string
}

func (r *mdRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if entering {
			r.inline.Reset()
			break
		}
		r.flush(r.inline.String())
		if !r.tight() {
			r.blank()
		}

	case *ast.Heading:
		if entering {
			r.inline.Reset()
			break
		}
		r.blank()
		r.flush(headingStyle.Render(ansi.Strip(r.inline.String())))
		r.blank()

	case *ast.List:
		if entering {
			r.lists = append(r.lists, mdList{ordered: n.IsOrdered(), next: n.Start, tight: n.IsTight})
			break
		}
		r.lists = r.lists[:len(r.lists)-1]
		if !r.tight() {
			r.blank()
		}

	case *ast.ListItem:
		l := &r.lists[len(r.lists)-1]
		if entering {
			b := "• "
			if l.ordered {
				b = fmt.Sprintf("%d. ", l.next)
				l.next++
			}
			w := ansi.StringWidth(b)
			r.bullet = r.indent + b
			r.indent += strings.Repeat(" ", w)
			l.pad = append(l.pad, w)
			break
		}
		w := l.pad[len(l.pad)-1]
		l.pad = l.pad[:len(l.pad)-1]
		r.indent = r.indent[:len(r.indent)-w]
		r.bullet = ""

	case *ast.Text:
		if entering {
			r.inline.WriteString(r.styled(string(n.Segment.Value(r.src))))
			switch {
			case n.HardLineBreak():
				r.inline.WriteByte('\n')
			case n.SoftLineBreak():
				r.inline.WriteByte(' ')
			}
		}

	case *ast.String:
		if entering {
			r.inline.WriteString(r.styled(string(n.Value)))
		}

	case *ast.Emphasis:
		d := 1
		if !entering {
			d = -1
		}
		if n.Level >= 2 {
			r.bold += d
		} else {
			r.italic += d
		}

	case *ast.CodeSpan:
		if entering {
			var b strings.Builder
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(r.src))
				}
			}
			r.inline.WriteString(codeStyle.Render(b.String()))
			return ast.WalkSkipChildren, nil
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.blank()
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				r.line(codeStyle.Render(strings.TrimRight(string(seg.Value(r.src)), "\n")))
			}
			r.blank()
			return ast.WalkSkipChildren, nil
		}

	case *ast.ThematicBreak:
		if entering {
			r.blank()
			r.line(dimStyle.Render(strings.Repeat("─", r.avail())))
			r.blank()
		}
	}
	return ast.WalkContinue, nil
}

func (r *mdRenderer) styled(s string) string {
	if r.bold == 0 && r.italic == 0 {
		return s
	}
	return lipgloss.NewStyle().Bold(r.bold > 0).Italic(r.italic > 0).Render(s)
}

func (r *mdRenderer) tight() bool {
	return len(r.lists) > 0 && r.lists[len(r.lists)-1].tight
}

func (r *mdRenderer) avail() int {
	return max(r.width-len(r.indent), 10)
}

// flush wraps a block's inline content and writes it under the current
// indent. The first line takes a pending list bullet.
func (r *mdRenderer) flush(content string) {
	if strings.TrimSpace(ansi.Strip(content)) == "" {
		return
	}
	for _, l := range strings.Split(ansi.Wrap(content, r.avail(), ""), "\n") {
		r.line(l)
	}
}

func (r *mdRenderer) line(s string) {
	prefix := r.indent
	if r.bullet != "" {
		prefix, r.bullet = r.bullet, ""
	}
	r.out.WriteString(prefix)
	r.out.WriteString(strings.TrimRight(s, " "))
	r.out.WriteByte('\n')
}

// blank ends the output with exactly one empty line.
func (r *mdRenderer) blank() {
	s := r.out.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		r.out.WriteByte('\n')
	default:
		r.out.WriteString("\n\n")
	}
}
