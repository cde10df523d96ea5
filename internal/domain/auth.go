package domain

// LockoutRecord tracks consecutive failed logins for one account key.
// Until is epoch milliseconds.
type LockoutRecord struct {
	Fails int   `json:"fails"`
	Until int64 `json:"until"`
}

// OTPSession is the single pending one-time-code slot. ExpiresAt is epoch
// milliseconds.
type OTPSession struct {
	Email     string `json:"email"`
	OTP       string `json:"otp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// AuthSession is the token and permission blob kept after a completed login.
type AuthSession struct {
	Token       string   `json:"token"`
	Account     string   `json:"account"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	IssuedAt    int64    `json:"issuedAt"`
}

// LockState is the answer to "may this account try to log in now".
type LockState struct {
	Locked  bool `json:"locked"`
	Seconds int  `json:"seconds"`
}
