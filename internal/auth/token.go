package auth

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nao1215/walletgate/internal/session"
	"github.com/nao1215/walletgate/pkg/apperror"
)

// jwtSubject はウォレットセッションのJWTに設定するsub。
const jwtSubject = "profile"

// TokenConfig はTokenServiceの設定。
type TokenConfig struct {
	// Secret はHS256の署名鍵。
	Secret []byte
	// Issuer はJWTのiss。
	Issuer string
	// JWTLifetime はJWTの有効期間。
	JWTLifetime time.Duration
	// RefreshLifetime はリフレッシュトークンの有効期間。
	RefreshLifetime time.Duration
	// Authorities はログインしたウォレットに付与する権限。
	Authorities []string
}

// Session はログインまたはリフレッシュの結果。
type Session struct {
	// JWT はBearerトークン。
	JWT string `json:"jwt"`
	// RefreshToken は次回のリフレッシュに使うトークン。
	RefreshToken string `json:"refreshToken"`
}

// Claims はウォレットセッションのJWTクレーム。
type Claims struct {
	// CurrentWallet はログインに使ったウォレット。
	CurrentWallet string `json:"currentWallet"`
	// ProfileWallets はプロフィールに紐付く全ウォレット。
	ProfileWallets []string `json:"profileWallets"`
	// ProfileID はプロフィールID。
	ProfileID string `json:"profileId"`
	// Authorities は付与された権限。
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

func (c *Claims) identity() *WalletIdentity {
	return &WalletIdentity{
		CurrentWallet:  c.CurrentWallet,
		ProfileWallets: slices.Clone(c.ProfileWallets),
		ProfileID:      c.ProfileID,
		Roles:          slices.Clone(c.Authorities),
	}
}

// TokenService はJWTとリフレッシュトークンを発行する。
type TokenService struct {
	store session.Store
	cfg   TokenConfig
	now   func() time.Time
}

// NewTokenService は新しいTokenServiceを生成する。
func NewTokenService(store session.Store, cfg TokenConfig) *TokenService {
	if cfg.JWTLifetime <= 0 {
		cfg.JWTLifetime = time.Hour
	}
	if cfg.RefreshLifetime <= 0 {
		cfg.RefreshLifetime = 7 * 24 * time.Hour
	}
	if len(cfg.Authorities) == 0 {
		cfg.Authorities = []string{"ALL"}
	}
	return &TokenService{store: store, cfg: cfg, now: time.Now}
}

// HashJWT はリフレッシュトークンとJWTを紐付けるためのハッシュ値を返す。
func HashJWT(token string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return h.Sum64()
}

// Issue はウォレットのJWTを発行し、それに紐付くリフレッシュトークンを保存する。
// id.Rolesが空の場合は設定された権限を付与する。
func (s *TokenService) Issue(ctx context.Context, id WalletIdentity) (Session, error) {
	if len(id.Roles) == 0 {
		id.Roles = slices.Clone(s.cfg.Authorities)
	}
	signed, err := s.sign(&id)
	if err != nil {
		return Session{}, err
	}
	rt := session.RefreshToken{
		Token:     uuid.New().String(),
		JWTHash:   HashJWT(signed),
		Wallet:    id.CurrentWallet,
		UpdatedAt: s.now(),
	}
	if err := s.store.SaveRefreshToken(ctx, rt, s.cfg.RefreshLifetime); err != nil {
		return Session{}, fmt.Errorf("リフレッシュトークンの保存に失敗: %w", err)
	}
	return Session{JWT: signed, RefreshToken: rt.Token}, nil
}

// Refresh はJWTとリフレッシュトークンの組を新しい組に交換する。
//
// JWTは署名のみ検証し、有効期限切れでも受け付ける。
// JWTのウォレットがwalletと異なる場合はErrWrongWallet、
// リフレッシュトークンが存在しないかJWTに紐付いていない場合はErrNotValidRTを返す。
// 成功すると古いリフレッシュトークンは即座に無効になる。
func (s *TokenService) Refresh(ctx context.Context, wallet, token, refreshToken string) (Session, error) {
	wallet, err := NormalizeWallet(wallet)
	if err != nil {
		return Session{}, err
	}
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return Session{}, err
	}
	if claims.CurrentWallet != wallet {
		return Session{}, apperror.ErrWrongWallet.WithMessage("JWTのウォレット %s が %s と一致しません", claims.CurrentWallet, wallet)
	}

	stored, err := s.store.GetRefreshToken(ctx, refreshToken)
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, apperror.ErrNotValidRT
	}
	if err != nil {
		return Session{}, fmt.Errorf("リフレッシュトークンの取得に失敗: %w", err)
	}
	if stored.Wallet != wallet || stored.JWTHash != HashJWT(token) {
		return Session{}, apperror.ErrNotValidRT
	}

	id := claims.identity()
	signed, err := s.sign(id)
	if err != nil {
		return Session{}, err
	}
	next := session.RefreshToken{
		Token:     uuid.New().String(),
		JWTHash:   HashJWT(signed),
		Wallet:    wallet,
		UpdatedAt: s.now(),
	}
	err = s.store.RotateRefreshToken(ctx, refreshToken, stored.JWTHash, next, s.cfg.RefreshLifetime)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrHashMismatch) {
		return Session{}, apperror.ErrNotValidRT
	}
	if err != nil {
		return Session{}, fmt.Errorf("リフレッシュトークンの更新に失敗: %w", err)
	}
	return Session{JWT: signed, RefreshToken: next.Token}, nil
}

// Parse はJWTを検証して呼び出し元を返す。
// 有効期限切れはErrTokenExpired、それ以外の不正はErrInvalidTokenを返す。
func (s *TokenService) Parse(token string) (*WalletIdentity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	return claims.identity(), nil
}

func (s *TokenService) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperror.ErrTokenExpired.Wrap(err)
	}
	if err != nil {
		return nil, apperror.ErrInvalidToken.Wrap(err)
	}
	if claims.Issuer != s.cfg.Issuer || claims.Subject != jwtSubject {
		return nil, apperror.ErrInvalidToken.WithMessage("JWTの発行者が不正です")
	}
	if claims.CurrentWallet == "" {
		return nil, apperror.ErrInvalidToken.WithMessage("JWTにウォレットが含まれていません")
	}
	return claims, nil
}

func (s *TokenService) sign(id *WalletIdentity) (string, error) {
	now := s.now()
	claims := Claims{
		CurrentWallet:  id.CurrentWallet,
		ProfileWallets: id.ProfileWallets,
		ProfileID:      id.ProfileID,
		Authorities:    id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   jwtSubject,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTLifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("JWTの署名に失敗: %w", err)
	}
	log.Printf("[Auth] JWTを発行しました: wallet=%s profileId=%s", id.CurrentWallet, id.ProfileID)
	return signed, nil
}
