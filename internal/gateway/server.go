package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/internal/route"
	"github.com/nao1215/walletgate/pkg/middleware"
)

// Deps はServerが使う構築済みのコンポーネント。
type Deps struct {
	// Routes は現在有効なルート表。
	Routes *route.Table
	// Login はログインの流れ。
	Login *auth.LoginFlow
	// Binder はウォレットの紐付け。
	Binder *auth.WalletBinder
	// Tokens はJWTの検証に使う。
	Tokens *auth.TokenService
}

// Server はウォレット認証ゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの設定。
	cfg Config
	// routes は転送ルートとセキュリティ述語の表。
	routes *route.Table
	// login はログインの流れ。
	login *auth.LoginFlow
	// binder はウォレットの紐付け。
	binder *auth.WalletBinder
	// tokens はJWTの検証に使う。
	tokens *auth.TokenService
	// forwarder は認可済みリクエストの転送先への送信を行う。
	forwarder *Forwarder
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Routes == nil || deps.Login == nil || deps.Binder == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("ゲートウェイの依存コンポーネントが不足しています")
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.FrontendURLs))

	s := &Server{
		router:    router,
		cfg:       cfg,
		routes:    deps.Routes,
		login:     deps.Login,
		binder:    deps.Binder,
		tokens:    deps.Tokens,
		forwarder: NewForwarder(cfg.ForwardTimeout, cfg.ServiceName, cfg.Environment),
	}
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ログインと紐付け（認可チェーンを通さず各ハンドラで認証する）
	authAPI := s.router.Group(s.cfg.BasePath + "/v1/auth")
	{
		authAPI.GET("/login/:wallet", s.handleChallenge())
		authAPI.POST("/login/:wallet", s.handleLogin())
		authAPI.PUT("/login/:wallet", s.handleRefresh())
		authAPI.PUT("/bound/:profileId/:wallet", s.handleBind())
		authAPI.GET("/authority", s.handleAuthorities())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.ServiceName})
	})

	// それ以外はすべて認可チェーンを通して転送する
	s.router.NoRoute(s.authorize(), s.forwarder.handle())
}
