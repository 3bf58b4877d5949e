package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsubscribeForm(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, UnsubscribeForm("Inkwell", "reader@example.com").Render(&sb))
	out := sb.String()

	assert.Contains(t, out, "<title>Unsubscribe</title>")
	assert.Contains(t, out, "Inkwell")
	assert.Contains(t, out, `action="/api/newsletter/unsubscribe"`)
	assert.Contains(t, out, `value="reader@example.com"`)
	assert.Contains(t, out, `method="post"`)
}

func TestUnsubscribeDone(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, UnsubscribeDone("Inkwell", "reader@example.com").Render(&sb))
	out := sb.String()

	assert.Contains(t, out, "<title>Unsubscribed</title>")
	assert.Contains(t, out, "reader@example.com will no longer receive the newsletter.")
}

func TestLayoutEscapesText(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, UnsubscribeForm("Inkwell", `"><script>alert(1)</script>`).Render(&sb))
	out := sb.String()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}
