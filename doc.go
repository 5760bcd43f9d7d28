// Package auth implements a session backed authentication service:
// registration with emailed verification links, credential and social
// sign-in, and a rotating refresh token lifecycle.
//
// Sessions:
//   - Every login creates one session row per device. The client holds a
//     short-lived signed access token and an opaque refresh token whose
//     secret half is stored only as a bcrypt hash.
//   - Refresh rotates the pair atomically. A superseded or tampered
//     refresh token invalidates itself, and an expired one deletes the
//     session so the user has to sign in again.
//
// Verification:
//   - VerificationFlow issues single-use email tokens and consumes them
//     transactionally, marking the account verified and burning the
//     token in one step. Unverified accounts cannot sign in with
//     credentials.
//
// HTTP:
//   - RegisterAuthRoutes mounts the JSON surface (register, verify,
//     login, refresh, logout, me). The social subpackage adds the OAuth
//     begin/callback routes on top of the same session lifecycle.
package auth
