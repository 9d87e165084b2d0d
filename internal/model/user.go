package model

import "time"

// User represents an account record as stored in the `users` table.
// A user is verified iff EmailVerifiedAt is non-nil.  PasswordHash is
// never serialised.
//
// Fields:
//  ID              – primary key identifier of the user.
//  Name            – display name supplied at registration.
//  Email           – unique, lower-cased email address.
//  PasswordHash    – bcrypt hashed password.
//  EmailVerifiedAt – when the verification link was followed (nullable).
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type User struct {
	ID              uint64     `json:"id"`                // users.id
	Name            string     `json:"name"`              // users.name
	Email           string     `json:"email"`             // users.email
	PasswordHash    string     `json:"-"`                 // users.password_hash
	EmailVerifiedAt *time.Time `json:"email_verified_at"` // users.email_verified_at (nullable)
	CreatedAt       time.Time  `json:"created_at"`        // users.created_at
	UpdatedAt       time.Time  `json:"updated_at"`        // users.updated_at
}

// IsVerified reports whether the user has confirmed their email address.
func (u User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}
