package mock

// Exported is the value a mock module exports: either the handler list
// itself (Direct) or a function producing it (Factory).
//
// The variant is resolved exactly once, when the module is loaded. The
// dispatcher only ever sees the resolved []Handler.
type Exported interface {
	// Resolve returns the handler list for one load of the module.
	Resolve() []Handler

	exported()
}

// Direct is an export that is the handler list.
type Direct []Handler

// Resolve returns the handlers unchanged.
func (d Direct) Resolve() []Handler { return []Handler(d) }

func (Direct) exported() {}

// Factory is an export that builds a fresh handler list on every load.
// Use it when handlers close over state that must not survive a reload.
type Factory func() []Handler

// Resolve invokes the factory. A nil factory resolves to no handlers.
func (f Factory) Resolve() []Handler {
	if f == nil {
		return nil
	}
	return f()
}

func (Factory) exported() {}
