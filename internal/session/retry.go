package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// withRetry はタイムアウト付きでストア操作を実行し、一時的な失敗の場合のみ1回だけ再試行する。
// 呼び出し元のコンテキストが終了している場合は再試行しない。
func withRetry(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	err := attempt(ctx, timeout, fn)
	if err == nil || !isTransient(err) || ctx.Err() != nil {
		return err
	}
	log.Printf("[Session] %s が一時的なエラーで失敗したため再試行します: %v", op, err)
	if err := attempt(ctx, timeout, fn); err != nil {
		return fmt.Errorf("%s の再試行に失敗: %w", op, err)
	}
	return nil
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// isTransient はタイムアウトや接続断など、再試行で回復し得るエラーか判定する。
func isTransient(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
