package models

import "time"

// User is a directory entry keyed by the platform identity.
type User struct {
	ID            string    `json:"userId"`
	NickName      string    `json:"nickName"`
	AvatarURL     string    `json:"avatarUrl"`
	Phone         string    `json:"phone"`
	IsAdmin       bool      `json:"isAdmin"`
	CreateTime    time.Time `json:"createTime"`
	UpdateTime    time.Time `json:"updateTime"`
	LastLoginTime time.Time `json:"lastLoginTime"`
}

// UserProfile carries the user-editable profile fields.
type UserProfile struct {
	NickName  string `json:"nickName"`
	AvatarURL string `json:"avatarUrl"`
	Phone     string `json:"phone"`
}
