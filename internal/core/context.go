package core

// Context is the process-wide holder of the node's four shared
// dependencies: the Circuit Store, the MPC Session Manager, the
// operator-lookup client, and the proof backend. It carries no behaviour of its own — job
// handlers pull what they need from it and drive the use-case logic
// directly, the same shape as the teacher's FleetUseCase/ResourceUseCase
// wrapping a single provider interface.
type Context struct {
	Store     Store
	Sessions  SessionManager
	Operators OperatorRegistry
	Backend   ProofBackend
}

// NewContext assembles a Context from its four dependencies. It is a
// Wire provider: see internal/core/wire.go.
func NewContext(store Store, sessions SessionManager, operators OperatorRegistry, backend ProofBackend) *Context {
	return &Context{
		Store:     store,
		Sessions:  sessions,
		Operators: operators,
		Backend:   backend,
	}
}
