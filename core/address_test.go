package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want Address
	}{
		{"echoer", LocalAddress("echoer")},
		{"0#echoer", LocalAddress("echoer")},
		{"1#127.0.0.1:4000", TCPAddress("127.0.0.1:4000")},
		{"tcp#host", LocalAddress("tcp#host")},
		{"#x", LocalAddress("#x")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.in))
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "0#h1", LocalAddress("h1").String())
	assert.Equal(t, "1#127.0.0.1:4000", TCPAddress("127.0.0.1:4000").String())
	assert.Equal(t, TCPAddress("a:1"), ParseAddress(TCPAddress("a:1").String()))
}

func TestRandomAddress(t *testing.T) {
	a := RandomAddress("encryptor")
	b := RandomAddress("encryptor")

	assert.True(t, a.IsLocal())
	assert.True(t, strings.HasPrefix(a.Value, "encryptor_"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a.Value, "-")
}

func TestRoute(t *testing.T) {
	r := NewRoute("h1", "h2", "echoer")
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "[0#h1, 0#h2, 0#echoer]", r.String())

	next, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, LocalAddress("h1"), next)

	step, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, LocalAddress("h1"), step)
	assert.Equal(t, "[0#h2, 0#echoer]", r.String())

	r.Prepend(LocalAddress("h0")).Append(LocalAddress("tail"))
	assert.Equal(t, "[0#h0, 0#h2, 0#echoer, 0#tail]", r.String())

	r.PopFront().PrependRoute(NewRoute("a", "b"))
	assert.Equal(t, "[0#a, 0#b, 0#h2, 0#echoer, 0#tail]", r.String())
}

func TestRouteCloneIsIndependent(t *testing.T) {
	r := NewRoute("a", "b")
	c := r.Clone()
	c[0] = LocalAddress("z")
	c.Append(LocalAddress("y"))

	assert.Equal(t, "[0#a, 0#b]", r.String())
}

func TestEmptyRoute(t *testing.T) {
	var r Route
	_, err := r.Next()
	assert.ErrorIs(t, err, ErrEmptyRoute)
	_, err = r.Step()
	assert.ErrorIs(t, err, ErrEmptyRoute)
	assert.Equal(t, 0, r.PopFront().Len())
}
