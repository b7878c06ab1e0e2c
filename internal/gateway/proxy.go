package gateway

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/pkg/apperror"
	"github.com/nao1215/walletgate/pkg/middleware"
)

// 転送先に付与するヘッダー。
// X-Encrypt-Fields はルートの暗号化対象フィールド名をカンマ区切りで渡す。
const (
	headerServiceName          = "X-Service-Name"
	headerEnvironment          = "X-Environment"
	headerServiceAuthorization = "X-Service-Authorization"
	headerEncryptFields        = "X-Encrypt-Fields"
)

// hopHeaders は転送しないホップ間ヘッダー。
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder は認可済みのリクエストを決定したルートの転送先に送る。
type Forwarder struct {
	client      *http.Client
	serviceName string
	environment string
}

// NewForwarder は新しいForwarderを生成する。
func NewForwarder(timeout time.Duration, serviceName, environment string) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		serviceName: serviceName,
		environment: environment,
	}
}

// handle はRequestContextのルートにリクエストを転送するハンドラを返す。
func (f *Forwarder) handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := RequestContextFrom(c)
		if !ok || rc.Route == nil {
			middleware.AbortWithError(c, apperror.ErrNotFound)
			return
		}

		target := forwardURL(rc.Route.Target, rc.Route.ForwardPath(c.Request.URL.Path), c.Request.URL.RawQuery)
		var body io.Reader = c.Request.Body
		if c.Request.ContentLength == 0 {
			body = http.NoBody
		}
		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, body)
		if err != nil {
			middleware.AbortWithError(c, apperror.ErrInternal.Wrap(err))
			return
		}
		req.ContentLength = c.Request.ContentLength
		copyHeaders(req.Header, c.Request.Header)
		req.Header.Set("X-Forwarded-For", c.ClientIP())
		req.Header.Set(headerServiceName, f.serviceName)
		req.Header.Set(headerEnvironment, f.environment)
		if rc.Route.APIKey != "" {
			req.Header.Set(headerServiceAuthorization, "Bearer "+rc.Route.APIKey)
		}
		req.Header.Del(headerEncryptFields)
		if len(rc.Route.EncryptFields) > 0 {
			req.Header.Set(headerEncryptFields, strings.Join(rc.Route.EncryptFields, ","))
		}

		resp, err := f.client.Do(req)
		if err != nil {
			log.Printf("[Gateway] 転送に失敗しました: route=%s url=%s error=%v", rc.Route.Name, target, err)
			middleware.AbortWithError(c, apperror.ErrBadGateway.Wrap(err))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		copyHeaders(c.Writer.Header(), resp.Header)
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			log.Printf("[Gateway] レスポンスの転送に失敗しました: route=%s error=%v", rc.Route.Name, err)
		}
	}
}

// forwardURL は転送先のベースURLにパスとクエリを連結する。
func forwardURL(base *url.URL, path, rawQuery string) string {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
