package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInt(t *testing.T) {
	t.Setenv("ENVUTIL_INT", " 12 ")
	assert.Equal(t, 12, Int("ENVUTIL_INT", 3))
	t.Setenv("ENVUTIL_INT", "x")
	assert.Equal(t, 3, Int("ENVUTIL_INT", 3))
	assert.Equal(t, 7, Int("ENVUTIL_INT_MISSING", 7))
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_BOOL", "on")
	assert.True(t, Bool("ENVUTIL_BOOL", false))
	t.Setenv("ENVUTIL_BOOL", "off")
	assert.False(t, Bool("ENVUTIL_BOOL", true))
	t.Setenv("ENVUTIL_BOOL", "maybe")
	assert.True(t, Bool("ENVUTIL_BOOL", true))
}

func TestDurations(t *testing.T) {
	t.Setenv("ENVUTIL_SECS", "15")
	t.Setenv("ENVUTIL_MINS", "0")
	assert.Equal(t, 15*time.Second, Seconds("ENVUTIL_SECS", time.Second))
	assert.Equal(t, time.Duration(0), Minutes("ENVUTIL_MINS", time.Hour))
	assert.Equal(t, time.Hour, Minutes("ENVUTIL_MINS_MISSING", time.Hour))
}
