package session

// Storage keys owned by the session manager.
const (
	KeyToken       = "session_token"
	KeyTokenExpiry = "session_token_expiry"
	KeyUserInfo    = "session_user_info"
	KeyAuthState   = "auth_state"
)

// sessionKeys are always removed together.
var sessionKeys = []string{KeyToken, KeyTokenExpiry, KeyUserInfo}
