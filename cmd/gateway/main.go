// ウォレット認証ゲートウェイのエントリポイント。
// ウォレット署名によるログインとJWTの発行、宣言されたルートへの認可付き転送を担当する。
// SIGHUPを受け取るとROUTES_CONFIGを読み直してルート表を差し替える。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/internal/gateway"
	"github.com/nao1215/walletgate/internal/profile"
	"github.com/nao1215/walletgate/internal/route"
	"github.com/nao1215/walletgate/internal/session"
)

func main() {
	ctx := context.Background()

	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	redisClient, err := session.NewRedisClient(ctx)
	if err != nil {
		log.Fatalf("Redisクライアントの初期化に失敗: %v", err)
	}
	defer redisClient.Close()
	store := session.NewRedisStore(redisClient, cfg.Store)

	var profileDB *profile.SQLiteStore
	if strings.EqualFold(cfg.ProfileProvider, "sqlite") {
		profileDB, err = profile.OpenSQLite(ctx, cfg.ProfileDBPath)
		if err != nil {
			log.Fatalf("プロフィールDBの初期化に失敗: %v", err)
		}
		defer profileDB.Close()
	}
	provider, binder, err := profile.New(cfg.ProfileProvider, cfg.Profile, profileDB)
	if err != nil {
		log.Fatalf("プロフィールプロバイダーの初期化に失敗: %v", err)
	}

	routesCfg, err := loadRoutes(cfg)
	if err != nil {
		log.Fatalf("ルート設定の読み込みに失敗: %v", err)
	}
	table, err := route.NewTable(route.NewBuilder(route.NewPatternParser()), routesCfg)
	if err != nil {
		log.Fatalf("ルート表の構築に失敗: %v", err)
	}

	tokens := auth.NewTokenService(store, cfg.Token)
	login := auth.NewLoginFlow(
		auth.NewNonceService(store, cfg.Nonce),
		auth.NewVerifier(cfg.VerifySignatureDisabled),
		tokens,
		provider,
	)
	server, err := gateway.NewServer(cfg, gateway.Deps{
		Routes: table,
		Login:  login,
		Binder: auth.NewWalletBinder(login, binder),
		Tokens: tokens,
	})
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	go reloadOnHangup(cfg, table)

	log.Printf("Gatewayサービスを起動します: :%s (profileProvider=%s routes=%d)", cfg.Port, cfg.ProfileProvider, len(table.Load().Routes))
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}

// loadRoutes はROUTES_CONFIGのルート宣言を読み込む。未指定の場合はルートなしで起動する。
// 宣言にbasePathが無い場合はBASE_PATHを使う。
func loadRoutes(cfg gateway.Config) (route.Config, error) {
	if cfg.RoutesConfig == "" {
		log.Printf("[Route] ROUTES_CONFIGが未設定のため転送ルートなしで起動します")
		return route.Config{BasePath: cfg.BasePath}, nil
	}
	routesCfg, err := route.LoadConfig(cfg.RoutesConfig)
	if err != nil {
		return route.Config{}, err
	}
	if routesCfg.BasePath == "" {
		routesCfg.BasePath = cfg.BasePath
	}
	return routesCfg, nil
}

// reloadOnHangup はSIGHUPのたびにルート表を再構築する。失敗した場合は現在の表を使い続ける。
func reloadOnHangup(cfg gateway.Config, table *route.Table) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		routesCfg, err := loadRoutes(cfg)
		if err != nil {
			log.Printf("[Route] ルート設定の再読み込みに失敗しました: %v", err)
			continue
		}
		if err := table.Reload(routesCfg); err != nil {
			log.Printf("[Route] %v", err)
		}
	}
}
