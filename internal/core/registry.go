package core

import "sync"

// GetOrCreateSession returns the Session for the given test, creating one if
// needed. Multiple calls with the same TestReporter return the same Session,
// so doubles created anywhere in a test share one mode state.
//
// If the TestReporter supports Cleanup (like *testing.T), the session is
// torn down - outstanding waiters settled - and removed from the registry
// when the test completes.
func GetOrCreateSession(t TestReporter) *Session {
	registryMu.Lock()
	defer registryMu.Unlock()

	if session, ok := registry[t]; ok {
		return session
	}

	session := NewSession(t)
	registry[t] = session

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()

			session.teardown()
		})
	}

	return session
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for test coordination
	registry = make(map[TestReporter]*Session)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}
