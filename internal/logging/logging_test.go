package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New(Options{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = New(Options{})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := Nop()
	assert.Equal(t, l, OrNop(l))
	assert.NotPanics(t, func() { OrNop(nil).Warnw("ignored", "key", "value") })
}
