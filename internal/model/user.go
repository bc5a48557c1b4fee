package model

import "time"

// User represents a storefront identity as stored in the `users` table.
// PasswordHash never leaves the service: handlers render users through
// UserView.
//
// Fields:
//  ID           – UUID primary key.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hash (cost and salt embedded).
//  IsAdmin      – role flag carried in access tokens.
//  Name, Phone, Street, Apartment, Zip, City, Country – profile fields.
type User struct {
    ID           string    // users.id
    Name         string    // users.name
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Phone        string    // users.phone
    IsAdmin      bool      // users.is_admin
    Street       string    // users.street
    Apartment    string    // users.apartment
    Zip          string    // users.zip
    City         string    // users.city
    Country      string    // users.country
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// UserView is the public JSON shape of a user.
type UserView struct {
    ID        string    `json:"id"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    Phone     string    `json:"phone"`
    IsAdmin   bool      `json:"isAdmin"`
    Street    string    `json:"street"`
    Apartment string    `json:"apartment"`
    Zip       string    `json:"zip"`
    City      string    `json:"city"`
    Country   string    `json:"country"`
    CreatedAt time.Time `json:"createdAt"`
}

// View strips the password hash.
func (u *User) View() UserView {
    return UserView{
        ID:        u.ID,
        Name:      u.Name,
        Email:     u.Email,
        Phone:     u.Phone,
        IsAdmin:   u.IsAdmin,
        Street:    u.Street,
        Apartment: u.Apartment,
        Zip:       u.Zip,
        City:      u.City,
        Country:   u.Country,
        CreatedAt: u.CreatedAt,
    }
}

// RefreshToken models an entry in the `refresh_tokens` table.  The raw
// secret handed to the client is never stored; only its SHA‑256 hex digest.
// Revoked only ever moves from false to true.
//
// Fields:
//  TokenHash – SHA‑256 hex digest of the secret (primary key).
//  UserID    – owning identity (weak reference, no foreign key).
//  ExpiresAt – expiration timestamp.
//  Revoked   – set once the token is rotated or logged out.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    TokenHash string    // refresh_tokens.token_hash
    UserID    string    // refresh_tokens.user_id
    ExpiresAt time.Time // refresh_tokens.expires_at
    Revoked   bool      // refresh_tokens.revoked
    CreatedAt time.Time // refresh_tokens.created_at
}

// ExpiredAt reports whether the token is past expiry at t.
func (r *RefreshToken) ExpiredAt(t time.Time) bool {
    return !t.Before(r.ExpiresAt)
}
