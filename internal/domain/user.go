package domain

// User 登录账号（users 表）
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash (plaintext before migration)
	Role     string `json:"role"`
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}
