package petsera

// GuardState is the outcome of evaluating a guard against a session snapshot.
type GuardState string

const (
	// GuardPending means the session is still resolving; render nothing yet.
	// Redirecting here would bounce users with a valid session to the login
	// page on every hard refresh.
	GuardPending GuardState = "pending"
	// GuardGranted admits the request.
	GuardGranted GuardState = "granted"
	// GuardDenied refuses the request; Decision carries where to send the user.
	GuardDenied GuardState = "denied"
)

// Decision is a guard verdict. RedirectTo is only set when denied; ReturnTo
// preserves the originally requested path so a successful login can resume it.
type Decision struct {
	State      GuardState
	RedirectTo string
	ReturnTo   string
}

// Granted is a convenience check.
func (d Decision) Granted() bool { return d.State == GuardGranted }

// Pending is a convenience check.
func (d Decision) Pending() bool { return d.State == GuardPending }

// Guard evaluates access rules against session snapshots. The same rules serve
// the client-side route gate and the server middleware; both must agree on who
// gets in.
type Guard struct {
	loginRoute        string
	accessDeniedRoute string
}

// NewGuard builds a guard from the shared auth config.
func NewGuard(cfg Config) *Guard {
	return &Guard{
		loginRoute:        cfg.GetLoginRoute(),
		accessDeniedRoute: cfg.GetAccessDeniedRoute(),
	}
}

// Authenticated admits any signed-in principal. While the session is still
// loading the decision is pending, never a redirect. Denials point at the
// login route and carry the requested path for post-login resume.
func (g *Guard) Authenticated(session Session, requestedPath string) Decision {
	if session.Loading {
		return Decision{State: GuardPending}
	}
	if session.Principal == nil {
		return Decision{
			State:      GuardDenied,
			RedirectTo: g.loginRoute,
			ReturnTo:   requestedPath,
		}
	}
	return Decision{State: GuardGranted}
}

// Admin admits only signed-in principals whose role resolved to admin. An
// unresolved role is pending, not denied: the lookup may still be in flight.
// A signed-in non-admin goes to the access-denied page, with no return path
// since logging in again will not change the answer.
func (g *Guard) Admin(session Session, role Role, requestedPath string) Decision {
	authn := g.Authenticated(session, requestedPath)
	if !authn.Granted() {
		return authn
	}
	if !role.Resolved() {
		return Decision{State: GuardPending}
	}
	if !role.IsAdmin() {
		return Decision{
			State:      GuardDenied,
			RedirectTo: g.accessDeniedRoute,
		}
	}
	return Decision{State: GuardGranted}
}
