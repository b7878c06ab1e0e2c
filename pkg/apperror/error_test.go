package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestIs はエラー種類の比較を検証する。
func TestIs(t *testing.T) {
	t.Parallel()

	t.Run("原因を付けても同じ種類として比較できること", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("ログイン処理: %w", ErrNoNonce.Wrap(errors.New("redis: nil")))
		if !errors.Is(err, ErrNoNonce) {
			t.Error("errors.Is(err, ErrNoNonce) = false, want true")
		}
		if errors.Is(err, ErrWrongSigner) {
			t.Error("errors.Is(err, ErrWrongSigner) = true, want false")
		}
	})

	t.Run("メッセージを差し替えても種類は変わらないこと", func(t *testing.T) {
		t.Parallel()

		err := ErrWrongSigner.WithMessage("署名者が違います: %s", "0xabc")
		if !errors.Is(err, ErrWrongSigner) {
			t.Error("errors.Is(err, ErrWrongSigner) = false, want true")
		}
		if err.Message != "署名者が違います: 0xabc" {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

// TestFrom はFrom関数の変換を検証する。
func TestFrom(t *testing.T) {
	t.Parallel()

	t.Run("nilはnilのままであること", func(t *testing.T) {
		t.Parallel()

		if got := From(nil); got != nil {
			t.Errorf("From(nil) = %v, want nil", got)
		}
	})

	t.Run("モデル化されたエラーはそのまま返ること", func(t *testing.T) {
		t.Parallel()

		got := From(fmt.Errorf("wrap: %w", ErrAuthorizationDenied))
		if got.Status != http.StatusForbidden {
			t.Errorf("Status = %d, want %d", got.Status, http.StatusForbidden)
		}
		if got.Code != 4014 {
			t.Errorf("Code = %d, want %d", got.Code, 4014)
		}
	})

	t.Run("想定外のエラーは500と5000に変換され詳細を出さないこと", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("dial tcp 10.0.0.1:6379: connection refused")
		got := From(cause)
		if got.Status != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", got.Status, http.StatusInternalServerError)
		}
		if got.Code != 5000 {
			t.Errorf("Code = %d, want %d", got.Code, 5000)
		}
		if got.Body()["error"] != ErrInternal.Message {
			t.Errorf("error = %v, want %q", got.Body()["error"], ErrInternal.Message)
		}
		if !errors.Is(got, cause) {
			t.Error("原因エラーが保持されていない")
		}
	})
}
