package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	AvatarPath   string    `json:"avatar_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
