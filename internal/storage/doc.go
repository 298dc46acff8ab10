// Package storage provides the module registry backing the dispatcher.
//
// Key types:
//
//   - ModuleStore: the operations the loader, watcher, and dispatcher rely on
//   - Registry: insertion-ordered, copy-on-write implementation of ModuleStore
//
// Registration order is significant: it defines cross-module match priority.
// Upserting an existing key replaces its handlers in place; a new key is
// appended. Reads never block and never observe a partially updated module.
package storage
