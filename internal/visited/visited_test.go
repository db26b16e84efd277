package visited

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisit(t *testing.T) {
	s := New(64)

	assert.False(t, s.Visited(10))
	s.Visit(10)
	assert.True(t, s.Visited(10))
	assert.False(t, s.Visited(11))
}

func TestReset(t *testing.T) {
	s := New(64)

	for _, id := range []uint32{0, 5, 63} {
		s.Visit(id)
	}
	s.Reset()

	for _, id := range []uint32{0, 5, 63} {
		assert.False(t, s.Visited(id))
	}
}

func TestGrow(t *testing.T) {
	s := New(8)

	s.Visit(1000)
	assert.True(t, s.Visited(1000))
	assert.False(t, s.Visited(999))
}
