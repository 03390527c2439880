// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 全ユーザーデータはプロセスメモリ上にのみ保持され、再起動で失われる。
type User struct {
	ID            string
	GoogleID      string
	Email         string
	Name          string
	Picture       string
	Role          string // "user" または "admin"
	UserType      UserType
	CustomRole    string
	EmailVerified bool
	Locale        string
	IsActive      bool
	LoginCount    int
	LastLoginAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserActivity はユーザーの操作履歴エントリを表す。
type UserActivity struct {
	UserID    string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}
