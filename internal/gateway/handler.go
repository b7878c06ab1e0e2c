package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/internal/auth"
	"github.com/nao1215/walletgate/pkg/apperror"
	"github.com/nao1215/walletgate/pkg/middleware"
)

// signedRequest はチャレンジへの署名を運ぶボディ。
// 旧クライアントが送る sign も受け付ける。
type signedRequest struct {
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
	Sign      string `json:"sign"`
}

func (r signedRequest) signature() string {
	if r.Signature != "" {
		return r.Signature
	}
	return r.Sign
}

// refreshRequest はリフレッシュのボディ。旧クライアントが送る rt も受け付ける。
// jwtを省略した場合はAuthorizationヘッダーのトークンを使う。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	RT           string `json:"rt"`
	JWT          string `json:"jwt"`
}

func (r refreshRequest) refreshToken() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.RT
}

// bindSigned はボディを読み取り、署名が含まれていることを確認する。
func bindSigned(c *gin.Context) (signedRequest, error) {
	var req signedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return signedRequest{}, apperror.ErrBadRequest.Wrap(err)
	}
	if req.signature() == "" {
		return signedRequest{}, apperror.ErrBadRequest.WithMessage("signatureが指定されていません")
	}
	return req, nil
}

// handleChallenge はウォレットにnonceを発行するハンドラを返す。
func (s *Server) handleChallenge() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.login.Challenge(c.Request.Context(), c.Param("wallet"))
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

// handleLogin は署名を検証してセッションを発行するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindSigned(c)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		sess, err := s.login.Login(c.Request.Context(), c.Param("wallet"), req.Nonce, req.signature())
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// handleRefresh はJWTとリフレッシュトークンを新しい組に交換するハンドラを返す。
// 有効期限切れのJWTでも受け付けるため、認可チェーンを通さない。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, apperror.ErrBadRequest.Wrap(err))
			return
		}
		if req.refreshToken() == "" {
			middleware.AbortWithError(c, apperror.ErrBadRequest.WithMessage("refreshTokenが指定されていません"))
			return
		}
		token := req.JWT
		if token == "" {
			var err error
			if token, err = middleware.RequireBearer(c.Request); err != nil {
				middleware.AbortWithError(c, err)
				return
			}
		}
		sess, err := s.login.Refresh(c.Request.Context(), c.Param("wallet"), token, req.refreshToken())
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// handleBind は署名で所有を確認したウォレットを呼び出し元のプロフィールに追加するハンドラを返す。
func (s *Server) handleBind() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.binder.Enabled() {
			middleware.AbortWithError(c, apperror.ErrNotFound.WithMessage("ウォレットの紐付けは有効になっていません"))
			return
		}
		id, err := s.walletIdentity(c)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		req, err := bindSigned(c)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		res, err := s.binder.Bind(c.Request.Context(), id, c.Param("profileId"), c.Param("wallet"), req.Nonce, req.signature())
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleAuthorities は呼び出し元の権限を返すハンドラを返す。
func (s *Server) handleAuthorities() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := middleware.ExtractBearer(c.Request)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		if token == "" {
			middleware.AbortWithError(c, apperror.ErrNotAuthorised)
			return
		}
		id, err := s.tokens.Parse(token)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"profileId":   id.ID(),
			"wallet":      id.CurrentWallet,
			"authorities": id.Authorities(),
		})
	}
}

// walletIdentity はBearerトークンからウォレットの呼び出し元を復元する。
func (s *Server) walletIdentity(c *gin.Context) (*auth.WalletIdentity, error) {
	token, err := middleware.RequireBearer(c.Request)
	if err != nil {
		return nil, err
	}
	return s.tokens.Parse(token)
}
