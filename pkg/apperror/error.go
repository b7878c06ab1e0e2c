// Package apperror はゲートウェイが呼び出し元に返すエラーを表現する。
//
// すべての拒否は (HTTPステータス, エラーコード, メッセージ) の組に対応する。
// 想定外のエラーは From で汎用の500/5000に変換され、内部の詳細は外に出さない。
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error はモデル化された失敗を表す。
type Error struct {
	// Status はHTTPステータスコード。
	Status int
	// Code はクライアントが分岐に使う安定したエラーコード。
	Code int
	// Message は呼び出し元に返すメッセージ。
	Message string
	// Err はログ用に保持する原因エラー。レスポンスには含めない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code=%d): %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (code=%d)", e.Message, e.Code)
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, apperror.ErrNoNonce) のように種類で比較できる。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap は同じ種類のエラーに原因を付けた複製を返す。
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Code: e.Code, Message: e.Message, Err: cause}
}

// WithMessage は同じ種類でメッセージだけ差し替えた複製を返す。
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Status: e.Status, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// エラーの種類。コード値は既存クライアントとの互換のため変更しないこと。
var (
	// ErrWrongSigner は署名から復元したアドレスが要求ウォレットと異なる場合のエラー。
	ErrWrongSigner = &Error{Status: http.StatusUnauthorized, Code: 401100, Message: "署名者がウォレットと一致しません"}
	// ErrNoNonce は有効なnonceが存在しない場合のエラー。
	ErrNoNonce = &Error{Status: http.StatusUnauthorized, Code: 401101, Message: "有効なnonceがありません"}
	// ErrNotValidRT はリフレッシュトークンが無効な場合のエラー。
	ErrNotValidRT = &Error{Status: http.StatusUnauthorized, Code: 401102, Message: "リフレッシュトークンが無効です。最新のトークンを使用してください"}
	// ErrWrongTokenType はBearer以外の認証情報が提示された場合のエラー。
	ErrWrongTokenType = &Error{Status: http.StatusUnauthorized, Code: 401120, Message: "トークン種別が不正です。Bearerのみ対応しています"}
	// ErrWrongWallet はJWTのウォレットが文脈と一致しない場合のエラー。
	ErrWrongWallet = &Error{Status: http.StatusUnauthorized, Code: 40110, Message: "JWTのウォレットが一致しません"}
	// ErrTokenExpired はJWTの有効期限切れ。
	ErrTokenExpired = &Error{Status: http.StatusUnauthorized, Code: 4011, Message: "トークンの有効期限が切れています"}
	// ErrAuthRequired は認証が必要なルートに認証情報が無い場合のエラー。
	ErrAuthRequired = &Error{Status: http.StatusUnauthorized, Code: 4012, Message: "このリソースには認証が必要です。Bearerトークンを使用してください"}
	// ErrWrongProfileType は認証主体の種類がこのルートで扱えない場合のエラー。
	ErrWrongProfileType = &Error{Status: http.StatusUnauthorized, Code: 4013, Message: "認証主体の種類が不正です"}
	// ErrAuthorizationDenied は必要な権限を満たさない場合のエラー。
	ErrAuthorizationDenied = &Error{Status: http.StatusForbidden, Code: 4014, Message: "このリソースへのアクセス権限がありません"}
	// ErrProfileMismatch はパスのプロフィールIDが呼び出し元と異なる場合のエラー。
	ErrProfileMismatch = &Error{Status: http.StatusForbidden, Code: 4015, Message: "プロフィールが一致しません"}
	// ErrInvalidToken は署名不正や形式不正のJWT。
	ErrInvalidToken = &Error{Status: http.StatusUnauthorized, Code: 4016, Message: "トークンが無効です"}
	// ErrNotAuthorised は認証済み主体が必要なエンドポイントで主体が無い場合のエラー。
	ErrNotAuthorised = &Error{Status: http.StatusUnauthorized, Code: 4017, Message: "認証されていません"}
	// ErrBadRequest はリクエストの形式不正。
	ErrBadRequest = &Error{Status: http.StatusBadRequest, Code: 4000, Message: "リクエストが不正です"}
	// ErrNotFound はルートが見つからない場合のエラー。
	ErrNotFound = &Error{Status: http.StatusNotFound, Code: 4040, Message: "ルートが見つかりません"}
	// ErrMethodNotAllowed はパスは存在するがメソッドが許可されていない場合のエラー。
	ErrMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed, Code: 4050, Message: "許可されていないメソッドです"}
	// ErrConflict はウォレットが既に別のプロフィールに紐付いている場合のエラー。
	ErrConflict = &Error{Status: http.StatusConflict, Code: 4090, Message: "ウォレットは既に別のプロフィールに紐付いています"}
	// ErrInternal は想定外のエラー。
	ErrInternal = &Error{Status: http.StatusInternalServerError, Code: 5000, Message: "内部サーバーエラーが発生しました"}
	// ErrBadGateway はバックエンドとの通信失敗。
	ErrBadGateway = &Error{Status: http.StatusBadGateway, Code: 5020, Message: "内部サービスとの通信に失敗しました"}
)

// From は任意のエラーを*Errorに変換する。
// モデル化されていないエラーは原因を保持したままErrInternalとして扱う。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.Wrap(err)
}

// Body はレスポンスボディに書き出す形式を返す。
func (e *Error) Body() map[string]any {
	return map[string]any{
		"error":     e.Message,
		"errorCode": e.Code,
		"status":    e.Status,
	}
}
