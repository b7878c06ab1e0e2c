package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/walletgate/pkg/apperror"
	"github.com/nao1215/walletgate/pkg/httpclient"
)

// HTTPConfig はHTTPプロフィールサービスの設定。
type HTTPConfig struct {
	// ServiceURL はウォレット一覧の取得先。末尾にウォレットアドレスを連結して呼び出す。
	ServiceURL string
	// ServiceMethod は取得に使うHTTPメソッド。デフォルトはGET。
	ServiceMethod string
	// BoundURL は紐付けのURIテンプレート。{profileId}と{walletSecond}を置換する。
	BoundURL string
	// BoundMethod は紐付けに使うHTTPメソッド。デフォルトはPUT。
	BoundMethod string
	// Timeout は1リクエストのタイムアウト。
	Timeout time.Duration
}

func (c HTTPConfig) client() *httpclient.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpclient.New("", httpclient.WithTimeout(timeout))
}

// HTTPProvider は外部のプロフィールサービスからウォレット一覧を取得する。
type HTTPProvider struct {
	client *httpclient.Client
	url    string
	method string
}

// NewHTTPProvider は新しいHTTPProviderを生成する。
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	method := strings.ToUpper(cfg.ServiceMethod)
	if method == "" {
		method = http.MethodGet
	}
	return &HTTPProvider{client: cfg.client(), url: cfg.ServiceURL, method: method}
}

// Lookup はServiceURLにウォレットを連結して呼び出す。
// 応答にウォレットが含まれない場合は要求したウォレットを補う。
func (p *HTTPProvider) Lookup(ctx context.Context, wallet string) (Profile, error) {
	var prof Profile
	if err := p.client.DoJSON(ctx, p.method, p.url+url.PathEscape(wallet), nil, &prof); err != nil {
		return Profile{}, upstreamError("プロフィールの取得", err)
	}
	if prof.ID == "" {
		return Profile{}, apperror.ErrBadGateway.WithMessage("プロフィールサービスがprofileIdを返しませんでした")
	}
	for i, w := range prof.Wallets {
		prof.Wallets[i] = strings.ToLower(w)
	}
	if !containsWallet(prof.Wallets, wallet) {
		prof.Wallets = append([]string{wallet}, prof.Wallets...)
	}
	return prof, nil
}

// HTTPBinder は外部のプロフィールサービスにウォレットの紐付けを依頼する。
type HTTPBinder struct {
	client   *httpclient.Client
	template string
	method   string
}

// NewHTTPBinder は新しいHTTPBinderを生成する。
func NewHTTPBinder(cfg HTTPConfig) *HTTPBinder {
	method := strings.ToUpper(cfg.BoundMethod)
	if method == "" {
		method = http.MethodPut
	}
	return &HTTPBinder{client: cfg.client(), template: cfg.BoundURL, method: method}
}

// bindResponse はプロフィールサービスの応答。
type bindResponse struct {
	Status string `json:"status"`
}

// Bind はテンプレートを展開したURIを呼び出す。
// 呼び出し元の識別情報は追加後のウォレット一覧とともにヘッダーで伝播する。
func (b *HTTPBinder) Bind(ctx context.Context, req BindRequest) (string, error) {
	uri := strings.NewReplacer(
		"{profileId}", url.PathEscape(req.ProfileID),
		"{walletSecond}", url.PathEscape(req.NewWallet),
	).Replace(b.template)

	wallets := append(append([]string{}, req.ProfileWallets...), req.NewWallet)
	ctx = httpclient.WithIdentity(ctx, httpclient.Identity{
		Wallet:    req.CurrentWallet,
		Wallets:   wallets,
		ProfileID: req.ProfileID,
	})

	var rs bindResponse
	if err := b.client.DoJSON(ctx, b.method, uri, nil, &rs); err != nil {
		return "", upstreamError("ウォレットの紐付け", err)
	}
	return rs.Status, nil
}

// upstreamError は外部サービスのエラーをゲートウェイのエラーに変換する。
func upstreamError(op string, err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		return apperror.ErrConflict.Wrap(err)
	}
	return apperror.ErrBadGateway.Wrap(fmt.Errorf("%sに失敗: %w", op, err))
}

func containsWallet(wallets []string, wallet string) bool {
	for _, w := range wallets {
		if strings.EqualFold(w, wallet) {
			return true
		}
	}
	return false
}
