package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/pkg/utils"
)

func TestAdminGatePlainKey(t *testing.T) {
	g := NewAdminGate("BIScusat", "")
	assert.NoError(t, g.Authorize("BIScusat"))
	err := g.Authorize("wrong")
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	assert.Error(t, g.Authorize(""))
}

func TestAdminGateHashWins(t *testing.T) {
	h, err := utils.HashSecret("new-secret")
	require.NoError(t, err)
	g := NewAdminGate("old-secret", h)
	assert.NoError(t, g.Authorize("new-secret"))
	assert.Error(t, g.Authorize("old-secret"))
}

func TestAdminGateUnconfiguredRefusesAll(t *testing.T) {
	g := NewAdminGate("", "")
	assert.Error(t, g.Authorize("anything"))
}
