package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "PRODUCTION", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).SugaredLogger)

	l := Nop()
	assert.Same(t, l, OrNop(l))
}

func TestWith_ReturnsChild(t *testing.T) {
	l := Nop()
	child := l.With("user_id", "abc")
	assert.NotSame(t, l, child)
	assert.NotPanics(t, func() { child.Info("hello", "k", "v") })
}
