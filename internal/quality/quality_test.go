package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibleDirectAlwaysAllowed(t *testing.T) {
	assert.True(t, Eligible(Direct, 1))
	assert.True(t, Eligible(Direct, 2160))
}

func TestEligibleHeightGate(t *testing.T) {
	assert.True(t, Eligible(P720, 1080))
	assert.True(t, Eligible(P1080, 1080))
	assert.False(t, Eligible(P2160, 1080))
	assert.False(t, Eligible(P1080, 480))
}

func TestEligibleUnknownLabel(t *testing.T) {
	assert.False(t, Eligible(Label("potato"), 1080))
}

func TestAllowedDescendingForSourceHeight(t *testing.T) {
	allowed := Allowed(1080)
	labels := make([]Label, len(allowed))
	for i, p := range allowed {
		labels[i] = p.Label
	}
	assert.Equal(t, []Label{Direct, P1080, P720, P480, P360}, labels)
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse("4k")
	assert.Error(t, err)
}

func TestLookupKnown(t *testing.T) {
	p, err := Lookup(P480)
	require.NoError(t, err)
	assert.Equal(t, 854, p.Width)
	assert.Equal(t, 480, p.Height)
}
