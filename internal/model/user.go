// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// フィード組み立てのコアが参照するのはIDのみ。
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserSummary はフォロー一覧などで使う最小限のユーザー情報。
type UserSummary struct {
	ID       int64
	Username string
}

// UserProfile はフォロワー・フォロー中ユーザーを含むユーザー詳細。
type UserProfile struct {
	User
	Followers []UserSummary
	Following []UserSummary
}
