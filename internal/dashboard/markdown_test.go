package dashboard

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestRenderMarkdown(t *testing.T) {
	md := "## **Buy**\nSolid growth\nand margins.\n\n- one\n- two\n\n1. a\n2. b\n"
	got := ansi.Strip(RenderMarkdown(md, 40))
	want := "Buy\n\nSolid growth and margins.\n\n• one\n• two\n\n1. a\n2. b"
	if got != want {
		t.Errorf("RenderMarkdown =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderMarkdownWraps(t *testing.T) {
	md := "- " + strings.Repeat("revenue keeps growing ", 8)
	got := ansi.Strip(RenderMarkdown(md, 30))
	lines := strings.Split(got, "\n")
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %q", got)
	}
	for i, l := range lines {
		if w := ansi.StringWidth(l); w > 30 {
			t.Errorf("line %d width %d > 30: %q", i, w, l)
		}
		if i == 0 && !strings.HasPrefix(l, "• ") {
			t.Errorf("first line %q lacks bullet", l)
		}
		if i > 0 && !strings.HasPrefix(l, "  ") {
			t.Errorf("continuation %q not indented under the bullet", l)
		}
	}
}

func TestRenderMarkdownNestedAndCode(t *testing.T) {
	md := "- outer\n  - inner\n- back\n\nUse `pe` here.\n"
	got := ansi.Strip(RenderMarkdown(md, 40))
	want := "• outer\n  • inner\n• back\n\nUse pe here."
	if got != want {
		t.Errorf("RenderMarkdown =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	if got := RenderMarkdown("  \n", 40); got != "" {
		t.Errorf("RenderMarkdown(blank) = %q", got)
	}
}
