package flowtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochClock(t *testing.T) {
	assert := assert.New(t)

	c := epochClock{epoch: 100}

	// First tick arms without firing.
	assert.False(c.tick(1000))
	assert.False(c.tick(1050))
	assert.False(c.tick(1099))

	// Boundary crossing fires and re-arms from the crossing record.
	assert.True(c.tick(1100))
	assert.False(c.tick(1150))
	assert.True(c.tick(1250))

	// A long gap still fires only once.
	assert.True(c.tick(9999))
	assert.False(c.tick(10000))
}
