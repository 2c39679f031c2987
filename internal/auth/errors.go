package auth

import "errors"

// 認証フローのエラー種別。呼び出し側はerrors.Isで判定する。
var (
	// ErrProviderExchangeFailed はIdPとの認可コード交換またはプロフィール取得の失敗。
	ErrProviderExchangeFailed = errors.New("provider exchange failed")

	// ErrInvalidState はコールバックのstateパラメータが欠落・改ざん・期限切れであることを示す。
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrUnauthenticated はBearerトークンが欠落・無効・期限切れであることを示す。
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrRevokeWithoutSession は有効なトークンを伴わないログアウト要求を示す。
	ErrRevokeWithoutSession = errors.New("revoke without session")
)
