package netx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Host not found: api.toggl.com", true},
		{"dial tcp: Connection refused", true},
		{"context deadline exceeded: connect timed out", true},
		{"SSL connection unexpectedly closed by peer", true},
		{"Missing GUID", false},
		{"validation error: description too long", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsTransient(c.msg), c.msg)
	}
}

func TestIsNetworkingError(t *testing.T) {
	assert.True(t, IsNetworkingError(errors.New("Network is down")))
	assert.False(t, IsNetworkingError(errors.New("Missing GUID")))
	assert.False(t, IsNetworkingError(nil))
}
