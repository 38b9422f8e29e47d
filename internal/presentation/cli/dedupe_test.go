package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduperWindow(t *testing.T) {
	d := newDeduper(time.Second)
	start := time.Now()

	assert.True(t, d.Allow("A", start))
	assert.False(t, d.Allow("A", start.Add(500*time.Millisecond)))
	assert.True(t, d.Allow("B", start.Add(500*time.Millisecond)))
	assert.True(t, d.Allow("A", start.Add(time.Second)))
}

func TestDeduperDisabled(t *testing.T) {
	d := newDeduper(0)
	now := time.Now()

	assert.True(t, d.Allow("A", now))
	assert.True(t, d.Allow("A", now))
}
