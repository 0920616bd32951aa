package common

// DefaultIssuer is the issuer name shown by authenticator apps.
const DefaultIssuer = "CofrapAuth"

// RequestIDHeaderName carries the request correlation id on HTTP responses.
const RequestIDHeaderName = "X-Request-Id"
