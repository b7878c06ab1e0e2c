package gateway

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/internal/route"
)

// RequestContext は認可チェーンが1リクエストについて決定した結果。
// チェーンの各段階が順に埋め、以降の処理からは読み取りのみ行う。
type RequestContext struct {
	// RequestTime はチェーンの開始時刻。
	RequestTime time.Time
	// Security はセキュリティ述語の評価結果。
	Security route.Resolution
	// Identity は認証済みの呼び出し元。認証情報が無い場合はnil。
	Identity auth.Principal
	// Route は転送先のルート。
	Route *route.Route
	// RouteMatch はルートの評価結果。
	RouteMatch route.Resolution
}

// requestContextKey はRequestContextをcontext.Contextに格納するキー。
type requestContextKey struct{}

func withRequestContext(c *gin.Context, rc *RequestContext) {
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestContextKey{}, rc))
}

// RequestContextFrom はチェーンが格納したRequestContextを返す。
func RequestContextFrom(c *gin.Context) (*RequestContext, bool) {
	rc, ok := c.Request.Context().Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
