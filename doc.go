// Package auth provides stateless bearer-token authentication for REST APIs
// (HS256 JWT issuance and verification, credential checks, and a declarative
// access policy) plus the bun repositories and fiber controllers that expose
// them.
//
// Tokens:
//   - TokenService encodes {sub, roles, exp} and decodes tokens offline. The
//     signing algorithm is pinned; tokens declaring any other algorithm
//     (including "none") fail with ErrTokenSignature. Decoding never touches
//     the credential store.
//
// Login:
//   - Auther resolves credentials through a CredentialStore, compares the
//     password with a PasswordVerifier, and mints a token. Unknown users and
//     wrong passwords produce the same ErrInvalidCredentials value.
//
// Authorization:
//   - The jwtware middleware establishes a request identity (or leaves the
//     request anonymous when no bearer credential is sent) and hands it to
//     AccessPolicy, a first-match-wins table of method/path rules.
//
// Activity sinks:
//   - ActivitySink receives login success and failure events. Sinks run
//     best-effort (errors are logged) so auditing never blocks a login.
package auth
