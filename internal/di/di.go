// Package di provides a minimal service registry with typed tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under name. Panics if absent.
	Get(name string) any
	// Lookup returns the service and whether it exists.
	Lookup(name string) (any, bool)
}

// Container is the write side: services and lazy factories are registered here.
type Container interface {
	ServiceRegistry
	Register(name string, svc any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.RWMutex
	services  map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		services:  make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(name string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = svc
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	svc, ok := c.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	return svc
}

func (c *container) Lookup(name string) (any, bool) {
	c.mu.RLock()
	svc, ok := c.services[name]
	if ok {
		c.mu.RUnlock()
		return svc, true
	}
	factory, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// Instantiate lazily, memoize under the same name.
	built := factory(c)
	c.mu.Lock()
	c.services[name] = built
	delete(c.factories, name)
	c.mu.Unlock()
	return built, true
}

// Token is a typed handle for a registered service.
type Token[T any] struct {
	name string
}

// NewToken creates a token with a unique name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// String returns the token name.
func (t Token[T]) String() string { return t.name }

// RegisterToken registers a lazily-constructed service under the token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken retrieves the service for the token, panicking on a type mismatch
// or missing registration. Wiring errors are programmer errors.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	svc := sr.Get(token.name)
	typed, ok := svc.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has type %T, not the token type", token.name, svc))
	}
	return typed
}
