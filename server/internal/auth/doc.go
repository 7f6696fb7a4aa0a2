// Package auth guards the service's inbound surfaces and carries caller
// credentials towards Jira.
//
// APIKeyInterceptor and APIKeyStreamInterceptor validate the API key in the
// named gRPC metadata header; RequireAPIKey does the same for HTTP. With mode
// other than "apikey", or no key configured, everything passes through.
//
// PropagateCredentials stores the inbound Authorization header in the request
// context (WithCredentials / CredentialsFrom); the Jira client forwards it
// when jira.auth.mode is "propagate".
package auth
