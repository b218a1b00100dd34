package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed back on every response.
const RequestIDHeaderName = "X-Request-ID"

// StatusFilterAll disables status filtering in proposal listings.
const StatusFilterAll = "All"
