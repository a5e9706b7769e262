// Package auth tracks the signed-in user and guards routes on it.
//
// The API client owns the tokens; this package owns who they belong to.
// A Session is loaded from the API's "who am I" endpoint after login or
// at startup and is cleared when the API rejects the stored credentials.
//
//	session := auth.NewSession(api)
//	if _, err := session.Load(ctx); auth.IsAuthError(err) {
//	    // show the login prompt
//	}
//
// # Route guards
//
// Guards read the route metadata, so routes opt in with Meta flags:
//
//	r.AddRoute("/admin", "admin", router.Meta{RequiresAuth: true, RequiresAdmin: true})
//	r.Guard(auth.RequireAuth(session))
//	r.Guard(auth.RequireAdmin(session))
//
// RequireRole, RequireAny and RequireAll build guards from arbitrary
// checks on the User for routes flagged RequiresAuth.
package auth
