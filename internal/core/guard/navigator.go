package guard

import (
	"sync"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// Navigator turns auth state changes into navigation effects for one
// client session. It only records where the client should go; HTTP
// handlers hand the target to the client.
type Navigator struct {
	mu      sync.Mutex
	landing string
	target  string
}

func NewNavigator() *Navigator {
	return &Navigator{landing: PathLogin}
}

// Observe records a navigation when state settles on a different landing
// page than the previous settled state. Resolving is transient and never
// navigates.
func (n *Navigator) Observe(state domain.AuthState) {
	if state.Kind == domain.StateResolving {
		return
	}
	landing := Landing(state)

	n.mu.Lock()
	defer n.mu.Unlock()
	if landing == n.landing {
		return
	}
	n.landing = landing
	n.target = landing
}

// Take returns and clears the pending navigation, if any.
func (n *Navigator) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := n.target
	n.target = ""
	return target, target != ""
}

// Landing is the page of the last settled state.
func (n *Navigator) Landing() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.landing
}
