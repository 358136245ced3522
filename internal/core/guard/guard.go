// Package guard decides whether a request may reach a page given the
// caller's auth state, and where to send it otherwise.
package guard

import "github.com/rlrepresentacoes/sigem/internal/core/domain"

const (
	// PathLogin is the public login page.
	PathLogin = "/"
	// PathPending is the page for accounts awaiting approval.
	PathPending = "/pending-approval"
)

// Route describes a guarded page. Module is the role owning the page, or
// "" for pages any authenticated user may see.
type Route struct {
	Path   string
	Module domain.Role
}

// Action is the outcome of a guard decision.
type Action int

const (
	Admit Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Admit {
		return "admit"
	}
	return "redirect"
}

// Decision is what the guard does with a request.
type Decision struct {
	Action Action
	// Target is set for Redirect.
	Target string
}

func admit() Decision { return Decision{Action: Admit} }

func redirect(target string) Decision { return Decision{Action: Redirect, Target: target} }

// Decide maps a state and a requested route onto a decision. It is pure:
// the same inputs always yield the same decision, and a redirect target
// is always a page the same state is admitted to.
func Decide(state domain.AuthState, route Route) Decision {
	switch state.Kind {
	case domain.StatePending:
		if route.Path == PathPending {
			return admit()
		}
		return redirect(PathPending)

	case domain.StateAuthenticated:
		role := state.Role()
		if route.Path == PathPending {
			return redirect(role.Path())
		}
		if route.Module == "" || route.Module == role {
			return admit()
		}
		return redirect(role.Path())
	}

	// LoggedOut, Resolving, or anything unknown.
	return redirect(PathLogin)
}

// Landing is the page a state settles on after login or logout.
func Landing(state domain.AuthState) string {
	switch state.Kind {
	case domain.StatePending:
		return PathPending
	case domain.StateAuthenticated:
		return state.Role().Path()
	}
	return PathLogin
}
