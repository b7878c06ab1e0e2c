package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestExtractBearer はBearerトークンの取り出しを検証する。
func TestExtractBearer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		target  string
		header  string
		want    string
		wantErr error
	}{
		{name: "Bearerヘッダーから取り出せること", method: http.MethodGet, target: "/x", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "接頭辞の大文字小文字を区別しないこと", method: http.MethodPost, target: "/x", header: "bearer abc", want: "abc"},
		{name: "認証情報が無い場合は空文字列を返すこと", method: http.MethodGet, target: "/x", want: ""},
		{name: "GETではクエリパラメータも参照すること", method: http.MethodGet, target: "/x?Authorization=Bearer%20q.r.s", want: "q.r.s"},
		{name: "クエリパラメータはBearerを省略したトークンも受け付けること", method: http.MethodGet, target: "/x?Authorization=q.r.s", want: "q.r.s"},
		{name: "ヘッダーはBearerの省略を受け付けないこと", method: http.MethodGet, target: "/x", header: "q.r.s", wantErr: apperror.ErrWrongTokenType},
		{name: "GET以外ではクエリパラメータを参照しないこと", method: http.MethodPost, target: "/x?Authorization=Bearer%20q.r.s", want: ""},
		{name: "ヘッダーがクエリパラメータより優先されること", method: http.MethodGet, target: "/x?Authorization=Bearer%20q", header: "Bearer h", want: "h"},
		{name: "Basic認証はErrWrongTokenTypeになること", method: http.MethodGet, target: "/x", header: "Basic dXNlcjpwYXNz", wantErr: apperror.ErrWrongTokenType},
		{name: "トークンが空のBearerはErrWrongTokenTypeになること", method: http.MethodGet, target: "/x", header: "Bearer ", wantErr: apperror.ErrWrongTokenType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearer(req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ExtractBearer() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractBearer()でエラーが発生: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractBearer() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRequireBearer は認証情報が必須の場合を検証する。
func TestRequireBearer(t *testing.T) {
	t.Parallel()

	t.Run("認証情報が無い場合はErrAuthRequiredになること", func(t *testing.T) {
		t.Parallel()

		_, err := RequireBearer(httptest.NewRequest(http.MethodPut, "/x", nil))
		if !errors.Is(err, apperror.ErrAuthRequired) {
			t.Errorf("RequireBearer() = %v, want ErrAuthRequired", err)
		}
	})

	t.Run("Bearerトークンを返すこと", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPut, "/x", nil)
		req.Header.Set("Authorization", "Bearer tok")
		got, err := RequireBearer(req)
		if err != nil || got != "tok" {
			t.Errorf("RequireBearer() = %q, %v", got, err)
		}
	})
}
