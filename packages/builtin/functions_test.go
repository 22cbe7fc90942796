package builtin

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCall(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "base64", expr: `base64("hi there")`, want: "aGkgdGhlcmU="},
		{name: "urlEncode", expr: `urlEncode('a b&c')`, want: "a+b%26c"},
		{name: "random fixed range", expr: "random(7, 7)", want: "7"},
		{name: "date layout", expr: `date("2006")`, want: time.Now().UTC().Format("2006")},
		{name: "no args", expr: "base64()", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryGenerated(t *testing.T) {
	r := NewRegistry()

	id, ok, err := r.Call("uuid()")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	s, _, err := r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, s, 12)

	ts, _, err := r.Call("timestamp()")
	require.NoError(t, err)
	_, err = strconv.ParseInt(ts, 10, 64)
	assert.NoError(t, err)
}

func TestRegistryNotAFunction(t *testing.T) {
	r := NewRegistry()

	for _, expr := range []string{"base", "login.user", "nope()"} {
		_, ok, err := r.Call(expr)
		assert.False(t, ok, expr)
		assert.NoError(t, err, expr)
	}
}

func TestRegistryBadArguments(t *testing.T) {
	r := NewRegistry()

	for _, expr := range []string{"random(a, 3)", "random(5, 1)", "randomString(-1)"} {
		_, ok, err := r.Call(expr)
		assert.True(t, ok, expr)
		assert.Error(t, err, expr)
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", func(args []string) (string, error) {
		if len(args) == 0 {
			return "", nil
		}
		return args[len(args)-1], nil
	})

	got, ok, err := r.Call(`echo(a, "b, c")`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b, c", got)
}
