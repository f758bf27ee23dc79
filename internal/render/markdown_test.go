package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownBulletList(t *testing.T) {
	out := string(Markdown("- Textbook\n- Office hours\n- [Site](https://example.edu)"))
	assert.Equal(t, 3, strings.Count(out, "<li>"))
	assert.Contains(t, out, `href="https://example.edu"`)
	assert.Contains(t, out, `rel="nofollow`)
}

func TestMarkdownStripsScripts(t *testing.T) {
	out := string(Markdown("hello <script>alert(1)</script> <img src=x onerror=alert(1)>"))
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onerror")
	assert.Contains(t, out, "hello")
}

