package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/shuttledesk/internal/model"
)

func TestApply(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	assert.NoError(t, Apply(""))
	assert.NoError(t, Apply(NameDefault))
	assert.EqualError(t, Apply("neon"), `unknown theme "neon"`)

	assert.NoError(t, Apply(NameMono))
	out := StatusStyle(model.StatusApproved).Render("approved")
	assert.NotContains(t, out, "38;", "mono renders no foreground colors")
	assert.Contains(t, out, "approved")
}

func TestStatusStyleDistinguishesTokens(t *testing.T) {
	assert.NotEqual(t,
		StatusStyle(model.StatusApproved).GetForeground(),
		StatusStyle(model.StatusRejected).GetForeground())
	assert.Equal(t,
		StatusStyle("unknown").GetForeground(),
		StatusStyle("").GetForeground(), "unknown tokens share the gray style")
}
