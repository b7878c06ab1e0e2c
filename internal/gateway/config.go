package gateway

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/internal/profile"
	"github.com/nao1215/walletgate/internal/session"
)

// devJWTSecret は JWT_SECRET が未設定の場合に使う開発用の署名鍵。
const devJWTSecret = "dev-secret-key"

// Config はゲートウェイの設定。LoadConfigで環境変数から組み立てる。
type Config struct {
	// Port はリッスンポート。
	Port string
	// BasePath は認証エンドポイントとルート宣言に共通するベースパス。
	BasePath string
	// ServiceName は転送先に X-Service-Name として渡す名前。
	ServiceName string
	// Environment は転送先に X-Environment として渡す環境名。
	Environment string
	// FrontendURLs はCORSで許可するオリジン。
	FrontendURLs []string
	// ForwardTimeout は転送先への1リクエストのタイムアウト。
	ForwardTimeout time.Duration
	// RoutesConfig はルート宣言のYAMLファイルのパス。空の場合はルートなしで起動する。
	RoutesConfig string

	Token                   auth.TokenConfig
	Nonce                   auth.NonceConfig
	VerifySignatureDisabled bool
	Store                   session.RedisConfig

	// ProfileProvider はプロフィールの解決方法。single、http、sqlite のいずれか。
	ProfileProvider string
	Profile         profile.HTTPConfig
	// ProfileDBPath はsqliteプロバイダーのデータベースファイル。
	ProfileDBPath string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		v, err := getDurationOr(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Printf("[Gateway] 警告: JWT_SECRETが未設定のため開発用の鍵を使用します")
		secret = devJWTSecret
	}
	disabled, err := getBoolOr("VERIFY_SIGNATURE_DISABLED", false)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg := Config{
		Port:           getEnvOr("PORT", "8080"),
		BasePath:       strings.TrimRight(getEnvOr("BASE_PATH", "/api"), "/"),
		ServiceName:    getEnvOr("SERVICE_NAME", "walletgate"),
		Environment:    getEnvOr("ENVIRONMENT", "dev"),
		FrontendURLs:   getListOr("FRONTEND_URL", []string{"http://localhost:3000"}),
		ForwardTimeout: duration("FORWARD_TIMEOUT", 30*time.Second),
		RoutesConfig:   os.Getenv("ROUTES_CONFIG"),
		Token: auth.TokenConfig{
			Secret:          []byte(secret),
			Issuer:          getEnvOr("JWT_ISSUER", "walletgate"),
			JWTLifetime:     duration("JWT_LIFETIME", time.Hour),
			RefreshLifetime: duration("RT_LIFETIME", 7*24*time.Hour),
			Authorities:     getListOr("JWT_AUTHORITIES", []string{"ALL"}),
		},
		Nonce: auth.NonceConfig{
			TTL:      duration("NONCE_LIFETIME", 5*time.Minute),
			Template: strings.ReplaceAll(getEnvOr("LOGIN_TEMPLATE", auth.DefaultLoginTemplate), `\n`, "\n"),
		},
		VerifySignatureDisabled: disabled,
		Store: session.RedisConfig{
			NoncePrefix:        getEnvOr("NONCE_REDIS_PREFIX", "LOGIN_NONCE"),
			RefreshTokenPrefix: getEnvOr("RT_REDIS_PREFIX", "REFRESH_TOKEN"),
			Timeout:            duration("STORE_TIMEOUT", 2*time.Second),
		},
		ProfileProvider: getEnvOr("PROFILE_PROVIDER", "single"),
		Profile: profile.HTTPConfig{
			ServiceURL:    os.Getenv("PROFILE_SERVICE_URL"),
			ServiceMethod: getEnvOr("PROFILE_SERVICE_METHOD", "GET"),
			BoundURL:      os.Getenv("PROFILE_BOUND_URL"),
			BoundMethod:   getEnvOr("PROFILE_BOUND_METHOD", "PUT"),
			Timeout:       duration("PROFILE_TIMEOUT", 10*time.Second),
		},
		ProfileDBPath: getEnvOr("PROFILE_DB_PATH", "/data/profiles.db"),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("設定が不正です: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOr(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s=%q は正の期間である必要があります", key, v)
	}
	return d, nil
}

func getBoolOr(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q は真偽値である必要があります", key, v)
	}
	return b, nil
}

// getListOr はカンマ区切りの環境変数を取得する。空要素は無視する。
func getListOr(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
