// Package authprogram decides whether a visitor of the repository browser
// may proceed.
//
// Accounts live in a credstore.Store; their passwords are kept as argon2id
// hashes in the PHC string format, so the work parameters of a hash travel
// with it and can be raised later without touching existing rows.
//
// A successful login mints a session.Token. The token has two halves: the
// key, which names a slot in the session cache, and the body, which is
// stored in that slot and must come back with the cookie. The cookie is
// only accepted when the cached body matches the presented one, compared in
// constant time. Nothing else is stored in the cookie, the user name stays
// on the server.
//
// Sessions die when the cache expires them, or earlier with Logout.
//
// Every failure on the browser facing side collapses to Denied, the reason
// is only visible in the logs (see Classify).
package authprogram
