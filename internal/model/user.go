// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// GoogleIDはIdPのsubject idで、一度設定されたら変更しない。
type User struct {
	ID        string
	GoogleID  string
	Name      string
	Email     string
	AvatarURL string // 空文字の場合は未設定
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccessToken はユーザーに紐づくBearerトークンの永続化レコードを表す。
// 平文のトークンは保持せず、SHA-256ハッシュのみを保存する。
type AccessToken struct {
	ID        string
	UserID    string
	TokenHash string
	Name      string
	CreatedAt time.Time
}

// Profile はIdPから取得した検証済みのユーザープロフィールを表す。
// SubjectID, Name, Emailは必須、AvatarURLのみ任意。
type Profile struct {
	SubjectID string
	Name      string
	Email     string
	AvatarURL string
}
