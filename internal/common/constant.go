// Package common contains shared constants and error kinds used across
// the accounts server components.
package common

// AccessTokenHeaderName is the gRPC metadata key that may carry the access
// token when no Authorization header is sent.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName is the HTTP header / gRPC metadata key carrying
// "Bearer <token>".
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// Cookie names set on login and refresh, cleared on logout.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
