package core

import "time"

type (
	// User is the authenticated caller as established by the OAuth login flow.
	// Subject is the stable identity key ("github:<id>" or the OIDC sub claim).
	User struct {
		Subject   string    `json:"subject"`
		Login     string    `json:"login"`
		Email     string    `json:"email"`
		AvatarURL string    `json:"avatarUrl"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}
)
