package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_RegisterAndGet(t *testing.T) {
	c := NewContainer()
	c.Register("answer", 42)

	assert.Equal(t, 42, c.Get("answer"))

	_, ok := c.Lookup("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { c.Get("missing") })
}

func TestContainer_FactoryIsLazyAndMemoized(t *testing.T) {
	c := NewContainer()
	calls := 0
	c.RegisterFactory("svc", func(sr ServiceRegistry) any {
		calls++
		return "built"
	})

	require.Equal(t, 0, calls, "factory runs on first resolve, not registration")
	assert.Equal(t, "built", c.Get("svc"))
	assert.Equal(t, "built", c.Get("svc"))
	assert.Equal(t, 1, calls)
}

func TestContainer_FactoryCanResolveDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("prefix", "hello")
	c.RegisterFactory("greeting", func(sr ServiceRegistry) any {
		return sr.Get("prefix").(string) + " world"
	})

	assert.Equal(t, "hello world", c.Get("greeting"))
}

func TestTokens(t *testing.T) {
	type service struct{ n int }

	c := NewContainer()
	token := NewToken[*service]("test.Service")
	RegisterToken(c, token, func(sr ServiceRegistry) *service {
		return &service{n: 7}
	})

	got := GetToken(c, token)
	assert.Equal(t, 7, got.n)

	wrong := NewToken[string]("test.Service")
	assert.Panics(t, func() { GetToken(c, wrong) })
}
