// Package auth implements the LOGIN_REQUIRED gate in front of the chat
// endpoints.
//
// An AuthChain asks its authenticators in turn. Each votes Yes with an
// identity, No, or Abstain when the request carries no credential it
// understands. When everyone abstains the chain falls back to its default:
// reject when login is required, otherwise admit as Anonymous. Middleware
// answers rejected requests with 403 and stores the admitted Identity in
// the request context.
package auth
