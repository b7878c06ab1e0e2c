package middleware

import (
	"net/http"
	"strings"

	"github.com/nao1215/walletgate/pkg/apperror"
)

// headerAuthorization は認証情報を運ぶヘッダー名。GETではクエリパラメータ名としても使う。
const headerAuthorization = "Authorization"

// bearerPrefix はBearerトークンの接頭辞。大文字小文字は区別しない。
const bearerPrefix = "bearer "

// ExtractBearer はリクエストからBearerトークンを取り出す。
// ヘッダーが無いGETリクエストでは Authorization クエリパラメータも参照する。
// クエリの値は "Bearer " を省略したトークンだけでもよい。
// 認証情報が無い場合は空文字列とnil、Bearer以外の形式はErrWrongTokenTypeを返す。
func ExtractBearer(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(headerAuthorization))
	if raw == "" && r.Method == http.MethodGet {
		raw = strings.TrimSpace(r.URL.Query().Get(headerAuthorization))
		if raw != "" && !hasBearerPrefix(raw) {
			raw = bearerPrefix + raw
		}
	}
	if raw == "" {
		return "", nil
	}
	if !hasBearerPrefix(raw) {
		return "", apperror.ErrWrongTokenType
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	if token == "" {
		return "", apperror.ErrWrongTokenType
	}
	return token, nil
}

// RequireBearer はExtractBearerと同じだが、認証情報が無い場合はErrAuthRequiredを返す。
func RequireBearer(r *http.Request) (string, error) {
	token, err := ExtractBearer(r)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", apperror.ErrAuthRequired
	}
	return token, nil
}

func hasBearerPrefix(raw string) bool {
	return len(raw) >= len(bearerPrefix) && strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix)
}
