package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/walletgate/internal/session"
	"github.com/nao1215/walletgate/pkg/apperror"
)

// DefaultLoginTemplate はチャレンジメッセージのデフォルトテンプレート。
// @nonce@ と @wallet@ を置換する。
const DefaultLoginTemplate = "Please connect your wallet\n@nonce@"

// NonceConfig はNonceServiceの設定。
type NonceConfig struct {
	// TTL はnonceの有効期間。
	TTL time.Duration
	// Template はチャレンジメッセージのテンプレート。
	Template string
}

// NonceService はログイン用のチャレンジを発行し、1回だけ消費させる。
type NonceService struct {
	store session.Store
	cfg   NonceConfig
	now   func() time.Time
}

// NewNonceService は新しいNonceServiceを生成する。
func NewNonceService(store session.Store, cfg NonceConfig) *NonceService {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Template == "" {
		cfg.Template = DefaultLoginTemplate
	}
	return &NonceService{store: store, cfg: cfg, now: time.Now}
}

// Start はウォレットに新しいnonceを発行する。以前のnonceは無効になる。
func (s *NonceService) Start(ctx context.Context, wallet string) (session.ClientNonce, error) {
	wallet, err := NormalizeWallet(wallet)
	if err != nil {
		return session.ClientNonce{}, err
	}
	nonce, err := s.generate()
	if err != nil {
		return session.ClientNonce{}, err
	}
	now := s.now()
	n := session.ClientNonce{
		Nonce:      nonce,
		CreatedAt:  now,
		Message:    s.message(nonce, wallet),
		Wallet:     wallet,
		ValidUntil: now.Add(s.cfg.TTL),
	}
	if err := s.store.PutNonce(ctx, n, s.cfg.TTL); err != nil {
		return session.ClientNonce{}, fmt.Errorf("nonceの保存に失敗: %w", err)
	}
	log.Printf("[Auth] nonceを発行しました: wallet=%s validUntil=%s", wallet, n.ValidUntil.Format(time.RFC3339))
	return n, nil
}

// Consume はnonceを消費する。呼び出し後、保存されていたnonceは結果に関わらず削除される。
// nonceが無い、期限切れ、または提示された値と異なる場合はErrNoNonce。
// nonceが空文字列の場合は保存されている値との照合を省略する（署名対象のメッセージで結び付くため）。
func (s *NonceService) Consume(ctx context.Context, wallet, nonce string) (session.ClientNonce, error) {
	wallet, err := NormalizeWallet(wallet)
	if err != nil {
		return session.ClientNonce{}, err
	}
	stored, err := s.store.TakeNonce(ctx, wallet)
	if errors.Is(err, session.ErrNotFound) {
		return session.ClientNonce{}, apperror.ErrNoNonce.WithMessage("ウォレット %s の有効なnonceがありません", wallet)
	}
	if err != nil {
		return session.ClientNonce{}, fmt.Errorf("nonceの取得に失敗: %w", err)
	}
	if !s.now().Before(stored.ValidUntil) {
		return session.ClientNonce{}, apperror.ErrNoNonce.WithMessage("ウォレット %s のnonceは有効期限切れです", wallet)
	}
	if nonce != "" && nonce != stored.Nonce {
		return session.ClientNonce{}, apperror.ErrNoNonce.WithMessage("ウォレット %s のnonceが一致しません", wallet)
	}
	return stored, nil
}

// generate は "yyyy-MM-dd HH:mm:ss:<乱数>" 形式のnonceを生成する。
func (s *NonceService) generate() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("乱数の生成に失敗: %w", err)
	}
	return s.now().Format("2006-01-02 15:04:05") + ":" + strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 10), nil
}

func (s *NonceService) message(nonce, wallet string) string {
	return strings.NewReplacer("@nonce@", nonce, "@wallet@", wallet).Replace(s.cfg.Template)
}
