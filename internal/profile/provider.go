package profile

import (
	"context"
	"fmt"
	"strings"
)

// Profile はウォレットが属するプロフィール。
type Profile struct {
	// ID はプロフィールID。
	ID string `json:"profileId"`
	// Wallets はプロフィールに紐付く全ウォレット。
	Wallets []string `json:"wallets"`
}

// Provider はウォレットからプロフィールを解決する。
type Provider interface {
	// Lookup はウォレットが属するプロフィールを返す。
	Lookup(ctx context.Context, wallet string) (Profile, error)
}

// BindRequest はウォレット紐付けの要求。
type BindRequest struct {
	// ProfileID は紐付け先のプロフィールID。
	ProfileID string
	// CurrentWallet は要求元の現在のウォレット。
	CurrentWallet string
	// ProfileWallets は要求元のプロフィールに既に紐付いているウォレット。
	ProfileWallets []string
	// NewWallet は追加するウォレット。署名で所有が確認済みであること。
	NewWallet string
}

// Binder はプロフィールにウォレットを追加する。
type Binder interface {
	// Bind はウォレットを追加し、外部サービスが返した状態を返す。
	Bind(ctx context.Context, req BindRequest) (string, error)
}

// SingleProvider は外部ストアを使わず、ウォレット自身をプロフィールIDとして扱う。
type SingleProvider struct{}

// Lookup はウォレット1つだけのプロフィールを返す。
func (SingleProvider) Lookup(_ context.Context, wallet string) (Profile, error) {
	return Profile{ID: wallet, Wallets: []string{wallet}}, nil
}

// New はkindに応じたProviderとBinderを返す。
// kind: single（デフォルト）、http、sqlite。sqliteの場合はSQLiteStoreを事前に生成して渡す。
func New(kind string, cfg HTTPConfig, store *SQLiteStore) (Provider, Binder, error) {
	switch strings.ToLower(kind) {
	case "", "single":
		return SingleProvider{}, nil, nil
	case "http":
		if cfg.ServiceURL == "" {
			return nil, nil, fmt.Errorf("PROFILE_SERVICE_URLが指定されていません")
		}
		var binder Binder
		if cfg.BoundURL != "" {
			binder = NewHTTPBinder(cfg)
		}
		return NewHTTPProvider(cfg), binder, nil
	case "sqlite":
		if store == nil {
			return nil, nil, fmt.Errorf("SQLiteStoreが初期化されていません")
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("不明なプロフィールプロバイダー: %q", kind)
	}
}
