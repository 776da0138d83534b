package credentials

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketIDFormat(t *testing.T) {
	g := NewGenerator("")
	pattern := regexp.MustCompile(`^BIS-ACAD-[0-9A-Z]{8}$`)
	for i := 0; i < 200; i++ {
		id, err := g.TicketID()
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
	}
}

func TestTicketIDCustomPrefix(t *testing.T) {
	g := NewGenerator("CONF-")
	id, err := g.TicketID()
	require.NoError(t, err)
	assert.Regexp(t, `^CONF-[0-9A-Z]{8}$`, id)
	assert.Equal(t, "CONF-", g.Prefix())
}

func TestTokenFormatAndUniqueness(t *testing.T) {
	g := NewGenerator("")
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tok, err := g.Token()
		require.NoError(t, err)
		assert.Len(t, tok, TokenLen)
		assert.Regexp(t, `^[0-9a-f]{24}$`, tok)
		_, dup := seen[tok]
		require.False(t, dup, "token repeated: %s", tok)
		seen[tok] = struct{}{}
	}
}
