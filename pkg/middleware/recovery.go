package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/walletgate/pkg/apperror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時は内容をログに出力し、500/5000のエラーボディを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				AbortWithError(c, apperror.ErrInternal)
			}
		}()
		c.Next()
	}
}

// AbortWithError はエラーを呼び出し元向けのボディに変換してリクエストを中断する。
// モデル化されていないエラーは原因をログに残し、500/5000として返す。
func AbortWithError(c *gin.Context, err error) {
	appErr := apperror.From(err)
	if appErr.Code == apperror.ErrInternal.Code && appErr.Err != nil {
		log.Printf("[Gateway] %s %s: %v", c.Request.Method, c.Request.URL.Path, appErr.Err)
	}
	c.AbortWithStatusJSON(appErr.Status, appErr.Body())
}
