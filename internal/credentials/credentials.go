// Package credentials generates ticket identifiers and verification tokens.
//
// The token is the bearer secret that grants ticket viewing and attendance
// marking, so it is always drawn from crypto/rand (via a v4 UUID). The ticket
// ID is human-facing and only needs to be hard to collide with.
package credentials

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultTicketPrefix is prepended to every ticket ID.
	DefaultTicketPrefix = "BIS-ACAD-"
	// TicketSuffixLen is the number of random characters after the prefix.
	TicketSuffixLen = 8
	// TokenLen is the length of a verification token (96 random bits).
	TokenLen = 24

	suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generator produces ticket credentials.
type Generator struct {
	prefix string
}

// NewGenerator creates a generator. An empty prefix uses DefaultTicketPrefix.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultTicketPrefix
	}
	return &Generator{prefix: prefix}
}

// Prefix returns the ticket ID prefix.
func (g *Generator) Prefix() string { return g.prefix }

// TicketID returns prefix + 8 uppercase base-36 characters.
func (g *Generator) TicketID() (string, error) {
	var b strings.Builder
	b.Grow(len(g.prefix) + TicketSuffixLen)
	b.WriteString(g.prefix)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := 0; i < TicketSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(suffixAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Token returns a 24-character lowercase hex token taken from a random UUID.
func (g *Generator) Token() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:TokenLen], nil
}
