package model

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the payload of an access token: {userID, isAdmin, iat, exp}.
type AccessClaims struct {
    UserID  string `json:"userID"`
    IsAdmin bool   `json:"isAdmin"`
    jwt.RegisteredClaims
}
