package handler

import (
	"time"

	"github.com/rkamal/authcore/internal/model"
)

// userView is the user shape returned by the API. It exists so the wire
// format is chosen here, not by whatever tags happen to be on the model
// — the password hash can never leak by accident, and LastLogin is
// rendered as RFC 3339 or null.
type userView struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	LastLogin *string `json:"last_login"`
}

func newUserView(u *model.User) *userView {
	v := &userView{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
	if u.LastLogin != nil {
		s := u.LastLogin.UTC().Format(time.RFC3339)
		v.LastLogin = &s
	}
	return v
}

// tokensView is the nested token object on OAuth responses.
type tokensView struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
