package constants

const (
	// TokenType for Bearer authentication
	TokenType = "Bearer"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// RequestIDHeader carries a per-request correlation id to the backend
	RequestIDHeader = "X-Request-ID"
)

// Callback query parameters
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)

// OAuth scopes
var DefaultScopes = []string{"openid", "profile", "email"}

// Response types
var SupportedResponseTypes = []string{"code"}
