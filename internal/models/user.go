package models

import "time"

// User is a demo account. Credentials live in memory and are compared in
// plaintext; this app does not attempt real authentication.
type User struct {
	Phone     string    `json:"phone"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CheckPassword compares the supplied password against the stored one.
func (u *User) CheckPassword(password string) bool {
	return u.Password != "" && u.Password == password
}

// DemoUsers seeds the in-memory user list.
func DemoUsers() []User {
	return []User{
		{Phone: "123456789", Password: "123456", Name: "Usuario Demo"},
		{Phone: "987654321", Password: "password", Name: "Admin"},
		{Phone: "555555555", Password: "test123", Name: "Test User"},
	}
}
