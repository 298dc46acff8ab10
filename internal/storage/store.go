// Package storage provides the in-memory registry of loaded mock modules.
package storage

import (
	"github.com/getmockd/devmock/pkg/mock"
)

// ModuleStore defines the operations the loader, watcher, and dispatcher need
// from a module registry.
type ModuleStore interface {
	// Upsert registers handlers under key, replacing any previous version
	// in place. A new key is appended after all existing keys.
	Upsert(key string, handlers []mock.Handler)

	// Remove deletes key. Returns false if it was not registered.
	Remove(key string) bool

	// RemoveAllUnder deletes every module whose key is dir or lies below it.
	RemoveAllUnder(dir string) []string

	// Get returns the module registered under key, or nil.
	Get(key string) *mock.Module

	// ListOrdered returns modules in registration order.
	ListOrdered() []*mock.Module
}
