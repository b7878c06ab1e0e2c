package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound はキーが存在しない場合のエラー。
	ErrNotFound = errors.New("session: not found")
	// ErrHashMismatch は保存されたjwtHashが提示されたJWTと一致しない場合のエラー。
	ErrHashMismatch = errors.New("session: jwt hash mismatch")
)

// ClientNonce はウォレットに発行したログインチャレンジ。
type ClientNonce struct {
	// Nonce はランダムなチャレンジ文字列。
	Nonce string `json:"nonce"`
	// CreatedAt は発行日時。
	CreatedAt time.Time `json:"createdAt"`
	// Message はウォレットが署名するメッセージ。
	Message string `json:"message"`
	// Wallet は正規化済みのウォレットアドレス。
	Wallet string `json:"wallet"`
	// ValidUntil は有効期限。
	ValidUntil time.Time `json:"validUntil"`
}

// RefreshToken はJWTに紐付いたリフレッシュトークンの記録。
type RefreshToken struct {
	// Token はトークン値（UUID）。ストアのキーになる。
	Token string
	// JWTHash は同時に発行したJWTのハッシュ値。
	JWTHash uint64
	// Wallet はトークンを発行したウォレット。
	Wallet string
	// UpdatedAt は発行日時。
	UpdatedAt time.Time
}

// Store はnonceとリフレッシュトークンの保存先。
// 同じキーへの読み取りと更新は実装側で原子的に行う。
type Store interface {
	// PutNonce はウォレットのnonceを保存する。既存のnonceは上書きされる。
	PutNonce(ctx context.Context, n ClientNonce, ttl time.Duration) error
	// TakeNonce はウォレットのnonceを取得して削除する。存在しない場合はErrNotFound。
	TakeNonce(ctx context.Context, wallet string) (ClientNonce, error)
	// SaveRefreshToken はリフレッシュトークンを保存する。
	SaveRefreshToken(ctx context.Context, rt RefreshToken, ttl time.Duration) error
	// GetRefreshToken はトークン値で記録を取得する。存在しない場合はErrNotFound。
	GetRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	// RotateRefreshToken は記録のjwtHashがexpectedと一致する場合に限り、
	// 古い記録を削除してnextを保存する。
	// 記録が無ければErrNotFound、ハッシュが違えばErrHashMismatchを返し、何も変更しない。
	RotateRefreshToken(ctx context.Context, oldToken string, expected uint64, next RefreshToken, ttl time.Duration) error
}

// rotateScript はリフレッシュトークンの比較と差し替えを1回で行う。
// 戻り値: 1=成功, 0=記録なし, -1=ハッシュ不一致
var rotateScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "jwtHash")
if not current then
  return 0
end
if current ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[2], "jwtHash", ARGV[2], "wallet", ARGV[3], "updatedAt", ARGV[4])
redis.call("PEXPIRE", KEYS[2], ARGV[5])
return 1
`)

// RedisConfig はRedisStoreの設定。
type RedisConfig struct {
	// NoncePrefix はnonceキーの接頭辞。
	NoncePrefix string
	// RefreshTokenPrefix はリフレッシュトークンキーの接頭辞。
	RefreshTokenPrefix string
	// Timeout は1回のストア操作のタイムアウト。
	Timeout time.Duration
}

// DefaultRedisConfig はデフォルト設定を返す。
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		NoncePrefix:        "LOGIN_NONCE",
		RefreshTokenPrefix: "REFRESH_TOKEN",
		Timeout:            2 * time.Second,
	}
}

// RedisStore はRedisを使ったStoreの実装。
type RedisStore struct {
	client redis.UniversalClient
	cfg    RedisConfig
}

// NewRedisStore は新しいRedisStoreを生成する。
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	def := DefaultRedisConfig()
	if cfg.NoncePrefix == "" {
		cfg.NoncePrefix = def.NoncePrefix
	}
	if cfg.RefreshTokenPrefix == "" {
		cfg.RefreshTokenPrefix = def.RefreshTokenPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &RedisStore{client: client, cfg: cfg}
}

func (s *RedisStore) nonceKey(wallet string) string {
	return s.cfg.NoncePrefix + ":" + wallet
}

func (s *RedisStore) refreshKey(token string) string {
	return s.cfg.RefreshTokenPrefix + ":" + token
}

// PutNonce はnonceをJSONとして保存する。
func (s *RedisStore) PutNonce(ctx context.Context, n ClientNonce, ttl time.Duration) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("nonceのシリアライズに失敗: %w", err)
	}
	return withRetry(ctx, s.cfg.Timeout, "PutNonce", func(ctx context.Context) error {
		return s.client.Set(ctx, s.nonceKey(n.Wallet), data, ttl).Err()
	})
}

// TakeNonce はGETDELでnonceを取得と同時に削除する。
func (s *RedisStore) TakeNonce(ctx context.Context, wallet string) (ClientNonce, error) {
	var raw string
	err := withRetry(ctx, s.cfg.Timeout, "TakeNonce", func(ctx context.Context) error {
		v, err := s.client.GetDel(ctx, s.nonceKey(wallet)).Result()
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return ClientNonce{}, ErrNotFound
	}
	if err != nil {
		return ClientNonce{}, err
	}
	var n ClientNonce
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return ClientNonce{}, fmt.Errorf("nonceのデシリアライズに失敗: %w", err)
	}
	return n, nil
}

// SaveRefreshToken は記録をハッシュ型で保存し、有効期限を設定する。
func (s *RedisStore) SaveRefreshToken(ctx context.Context, rt RefreshToken, ttl time.Duration) error {
	key := s.refreshKey(rt.Token)
	return withRetry(ctx, s.cfg.Timeout, "SaveRefreshToken", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"jwtHash", strconv.FormatUint(rt.JWTHash, 10),
				"wallet", rt.Wallet,
				"updatedAt", rt.UpdatedAt.UnixMilli(),
			)
			pipe.PExpire(ctx, key, ttl)
			return nil
		})
		return err
	})
}

// refreshTokenHash はRedisのハッシュ型に保存するフィールド。
type refreshTokenHash struct {
	JWTHash   string `redis:"jwtHash"`
	Wallet    string `redis:"wallet"`
	UpdatedAt int64  `redis:"updatedAt"`
}

// GetRefreshToken は記録を取得する。
func (s *RedisStore) GetRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	var h refreshTokenHash
	var found bool
	err := withRetry(ctx, s.cfg.Timeout, "GetRefreshToken", func(ctx context.Context) error {
		res := s.client.HGetAll(ctx, s.refreshKey(token))
		fields, err := res.Result()
		if err != nil {
			return err
		}
		found = len(fields) > 0
		if !found {
			return nil
		}
		return res.Scan(&h)
	})
	if err != nil {
		return RefreshToken{}, err
	}
	if !found {
		return RefreshToken{}, ErrNotFound
	}
	hash, err := strconv.ParseUint(h.JWTHash, 10, 64)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("jwtHash %q が不正: %w", h.JWTHash, err)
	}
	return RefreshToken{
		Token:     token,
		JWTHash:   hash,
		Wallet:    h.Wallet,
		UpdatedAt: time.UnixMilli(h.UpdatedAt),
	}, nil
}

// RotateRefreshToken はLuaスクリプトで比較と差し替えを原子的に行う。
func (s *RedisStore) RotateRefreshToken(ctx context.Context, oldToken string, expected uint64, next RefreshToken, ttl time.Duration) error {
	keys := []string{s.refreshKey(oldToken), s.refreshKey(next.Token)}
	var result int
	err := withRetry(ctx, s.cfg.Timeout, "RotateRefreshToken", func(ctx context.Context) error {
		n, err := rotateScript.Run(ctx, s.client, keys,
			strconv.FormatUint(expected, 10),
			strconv.FormatUint(next.JWTHash, 10),
			next.Wallet,
			next.UpdatedAt.UnixMilli(),
			ttl.Milliseconds(),
		).Int()
		if err != nil {
			return err
		}
		result = n
		return nil
	})
	if err != nil {
		return err
	}
	switch result {
	case 1:
		return nil
	case 0:
		return ErrNotFound
	default:
		return ErrHashMismatch
	}
}
