// Package authflow is an embeddable credentials authentication engine:
// sign up, sign in, sign out and session lookup, plus a route guard that
// decides per request whether to continue, redirect or hand off.
//
// Strategies:
//   - StrategyJWT keeps no server state. The signed token carried in the
//     session cookie (or a Bearer header) is the session.
//   - StrategySession additionally stores a session record per login
//     through a SessionAdapter, so signing out revokes the token.
//
// Storage is supplied by the host through UserAdapter and SessionAdapter.
// The adapters/ tree ships memory, bun and redis implementations.
//
// Every engine operation returns a Result value instead of an error. Failures
// carry an ErrorKind code and a message that is safe to show to end users;
// internal failures are logged and reported with a generic message.
//
// Callbacks:
//   - Callbacks.JWT runs before a token is signed and may add claims. The
//     identifier claim is always restored afterwards.
//   - Callbacks.Session shapes the data returned by Engine.Session.
package authflow
