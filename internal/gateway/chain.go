package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/pkg/apperror"
	"github.com/nao1215/walletgate/pkg/authority"
	"github.com/nao1215/walletgate/pkg/httpclient"
	"github.com/nao1215/walletgate/pkg/middleware"
)

// identityHeaders は呼び出し元が偽装できないよう受信時に削除するヘッダー。
var identityHeaders = []string{
	httpclient.HeaderClientWallet,
	httpclient.HeaderClientWallets,
	httpclient.HeaderClientID,
}

// authorize は認可チェーンのGinミドルウェアを返す。
//
// 段階は固定の順序で実行し、最初の拒否でリクエストを終了する。
//  1. セキュリティ述語の評価
//  2. Bearerトークンの取り出し
//  3. JWTから呼び出し元を復元
//  4. 要求される権限の確認
//  5. 転送先ルートの決定
//
// OPTIONSリクエストと認証を要求しない経路では2〜4を省略する。
// 転送先ルートが権限を持つ場合は、5の後に2〜4を実行する。
func (s *Server) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, err := s.runChain(c.Request)
		if err != nil {
			if appErr := apperror.From(err); appErr.Code == apperror.ErrMethodNotAllowed.Code && rc != nil {
				c.Header("Allow", strings.Join(rc.RouteMatch.AllowedMethods, ", "))
			}
			middleware.AbortWithError(c, err)
			return
		}
		withRequestContext(c, rc)
		c.Next()
	}
}

// runChain はリクエストを評価し、成功した場合は識別情報ヘッダーを付け直す。
// 405の場合は許可メソッドを返すためにRequestContextも返す。
// Authorizationヘッダーは認証を要求する経路でのみ解釈し、公開ルートではそのまま転送する。
func (s *Server) runChain(r *http.Request) (*RequestContext, error) {
	rs := s.routes.Load()
	rc := &RequestContext{RequestTime: time.Now()}
	method, path := r.Method, r.URL.Path
	checked := method == http.MethodOptions

	for _, h := range identityHeaders {
		r.Header.Del(h)
	}

	if !checked {
		rc.Security = rs.Security.Resolve(method, path)
		if rc.Security.Pass {
			if err := s.authenticate(r, rc, rc.Security.Authorities); err != nil {
				return nil, err
			}
		}
	}

	rt, res := rs.ResolveRoute(method, path)
	rc.RouteMatch = res
	if rt == nil {
		if len(res.AllowedMethods) > 0 {
			return rc, apperror.ErrMethodNotAllowed.WithMessage("メソッド %s は許可されていません", method)
		}
		return nil, apperror.ErrNotFound.WithMessage("ルートが見つかりません: %s %s", method, path)
	}
	if !checked && res.Authorities != nil {
		if err := s.authenticate(r, rc, res.Authorities); err != nil {
			return nil, err
		}
	}
	rc.Route = rt

	if id, ok := rc.Identity.(*auth.WalletIdentity); ok {
		httpclient.Identity{
			Wallet:    id.CurrentWallet,
			Wallets:   id.ProfileWallets,
			ProfileID: id.ProfileID,
		}.SetHeaders(r.Header)
	}
	return rc, nil
}

// authenticate はBearerトークンから呼び出し元を復元し、requiredを満たすか確認する。
// 同じリクエストで既に復元済みの場合は再度解析しない。
func (s *Server) authenticate(r *http.Request, rc *RequestContext, required *authority.PathAuthorities) error {
	if rc.Identity == nil {
		token, err := middleware.ExtractBearer(r)
		if err != nil {
			return err
		}
		if token != "" {
			id, err := s.tokens.Parse(token)
			if err != nil {
				return err
			}
			rc.Identity = id
		}
	}
	return checkAuthorities(required, rc.Identity)
}

// checkAuthorities は認証を要求する経路で呼び出し元が権限を満たすか確認する。
// requiredがnilの場合は何も要求しない。
func checkAuthorities(required *authority.PathAuthorities, id auth.Principal) error {
	if required == nil {
		return nil
	}
	if id == nil {
		return apperror.ErrAuthRequired
	}
	if !required.CheckHaveAuthorities(id.Authorities()) {
		return apperror.ErrAuthorizationDenied.WithMessage("必要な権限 %s を満たしていません", required.String())
	}
	return nil
}
