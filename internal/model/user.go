// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはレスポンスに含めてはならない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は検証済みトークンから取り出した認証済みユーザー情報を表す。
type Identity struct {
	UserID    string
	Email     string
	TokenID   string // JWTのjti。ログアウト時の失効に使用する
	ExpiresAt time.Time
}
