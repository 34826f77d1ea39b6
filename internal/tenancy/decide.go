package tenancy

// Kind enumerates guard outcomes.
type Kind string

const (
	// NoOp leaves unauthenticated navigation to the login flow.
	NoOp Kind = "noop"
	// Allow lets the navigation proceed.
	Allow Kind = "allow"
	// SetLock pins the session to TenantID, then allows.
	SetLock Kind = "set_lock"
	// Redirect replaces the navigation with Location.
	Redirect Kind = "redirect"
)

// State is everything the decision table reads.
type State struct {
	Authenticated  bool
	LockedTenantID string
	Target         Target
}

// Decision is the outcome of one navigation.
type Decision struct {
	Kind     Kind   `json:"action"`
	TenantID string `json:"tenant_id,omitempty"`
	Location string `json:"location,omitempty"`
}

// Allows reports whether the requested navigation proceeds.
func (d Decision) Allows() bool { return d.Kind == Allow || d.Kind == SetLock }

// Decide evaluates the tenant lock table. It never fails: malformed routes
// fall through to Allow or a redirect to the locked tenant.
func Decide(s State) Decision {
	if !s.Authenticated {
		return Decision{Kind: NoOp}
	}
	locked := s.LockedTenantID
	t := s.Target

	if t.Scoped {
		switch {
		case locked == "" && t.RouteTenantID != "":
			return Decision{Kind: SetLock, TenantID: t.RouteTenantID}
		case locked == "":
			return Decision{Kind: Allow}
		case t.RouteTenantID == locked:
			return Decision{Kind: Allow, TenantID: locked}
		default:
			return redirectTo(locked)
		}
	}

	if locked != "" && !t.Lobby {
		return redirectTo(locked)
	}
	return Decision{Kind: Allow, TenantID: locked}
}

func redirectTo(tenantID string) Decision {
	return Decision{Kind: Redirect, TenantID: tenantID, Location: TenantPath(tenantID)}
}
