package models

type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

type LoginResponse struct {
	User  AuthUser `json:"user"`
	Token string   `json:"token"`
}
