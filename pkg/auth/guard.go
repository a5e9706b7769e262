package auth

import (
	"context"

	"github.com/vango-dev/synthdesk/pkg/router"
)

// RequireAuth blocks routes flagged RequiresAuth unless the session is
// authenticated.
func RequireAuth(s *Session) router.GuardFunc {
	return func(ctx context.Context, _, to *router.Match) bool {
		if !needsAuth(to) {
			return true
		}
		return s.Authenticated(ctx)
	}
}

// RequireAdmin blocks routes flagged RequiresAdmin unless a token is
// stored and the user is an admin.
func RequireAdmin(s *Session) router.GuardFunc {
	return func(ctx context.Context, _, to *router.Match) bool {
		if to == nil || to.Route == nil || !to.Route.Meta.RequiresAdmin {
			return true
		}
		return s.Authenticated(ctx) && s.IsAdmin()
	}
}

// RequireRole guards routes flagged RequiresAuth with check.
//
//	r.Guard(auth.RequireRole(session, func(u auth.User) bool {
//	    return u.Plan != "free"
//	}))
func RequireRole(s *Session, check func(User) bool) router.GuardFunc {
	return RequireAll(s, check)
}

// RequireAny passes when at least one check accepts the user.
func RequireAny(s *Session, checks ...func(User) bool) router.GuardFunc {
	return func(ctx context.Context, _, to *router.Match) bool {
		if !needsAuth(to) {
			return true
		}
		user, err := s.Require(ctx)
		if err != nil {
			return false
		}
		for _, check := range checks {
			if check(user) {
				return true
			}
		}
		return false
	}
}

// RequireAll passes when every check accepts the user.
func RequireAll(s *Session, checks ...func(User) bool) router.GuardFunc {
	return func(ctx context.Context, _, to *router.Match) bool {
		if !needsAuth(to) {
			return true
		}
		user, err := s.Require(ctx)
		if err != nil {
			return false
		}
		for _, check := range checks {
			if !check(user) {
				return false
			}
		}
		return true
	}
}

func needsAuth(m *router.Match) bool {
	return m != nil && m.Route != nil && (m.Route.Meta.RequiresAuth || m.Route.Meta.RequiresAdmin)
}
