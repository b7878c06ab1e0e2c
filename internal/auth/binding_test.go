package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/walletgate/internal/profile"
	"github.com/nao1215/walletgate/pkg/apperror"
)

// recordingBinder は受け取った要求を記録する。
type recordingBinder struct {
	got    profile.BindRequest
	called bool
	status string
	err    error
}

func (b *recordingBinder) Bind(_ context.Context, req profile.BindRequest) (string, error) {
	b.called = true
	b.got = req
	return b.status, b.err
}

// TestWalletBinder はウォレット紐付けを検証する。
func TestWalletBinder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	caller := func(w testWallet) *WalletIdentity {
		return &WalletIdentity{CurrentWallet: w.address, ProfileWallets: []string{w.address}, ProfileID: "profile-1"}
	}

	t.Run("新しいウォレットの署名を検証して紐付けること", func(t *testing.T) {
		t.Parallel()

		current := newTestWallet(t)
		added := newTestWallet(t)
		flow := newTestLoginFlow(t, stubProvider{profile: profile.Profile{ID: "profile-1", Wallets: []string{current.address, added.address}}})
		rec := &recordingBinder{status: "OK"}
		binder := NewWalletBinder(flow, rec)

		n, _ := flow.Challenge(ctx, added.address)
		res, err := binder.Bind(ctx, caller(current), "profile-1", added.address, n.Nonce, added.sign(t, n.Message))
		if err != nil {
			t.Fatalf("Bind()でエラーが発生: %v", err)
		}
		if res.Status != "OK" {
			t.Errorf("Status = %q, want OK", res.Status)
		}
		if rec.got.NewWallet != added.address || rec.got.CurrentWallet != current.address || rec.got.ProfileID != "profile-1" {
			t.Errorf("BindRequest = %+v", rec.got)
		}
		id, err := flow.tokens.Parse(res.JWT)
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if id.CurrentWallet != added.address || len(id.ProfileWallets) != 2 {
			t.Errorf("identity = %+v", id)
		}
	})

	t.Run("呼び出し元と異なるプロフィールはErrProfileMismatchになること", func(t *testing.T) {
		t.Parallel()

		current := newTestWallet(t)
		added := newTestWallet(t)
		flow := newTestLoginFlow(t, nil)
		rec := &recordingBinder{status: "OK"}
		n, _ := flow.Challenge(ctx, added.address)
		_, err := NewWalletBinder(flow, rec).Bind(ctx, caller(current), "profile-2", added.address, n.Nonce, added.sign(t, n.Message))
		if !errors.Is(err, apperror.ErrProfileMismatch) {
			t.Errorf("Bind() = %v, want ErrProfileMismatch", err)
		}
		if rec.called {
			t.Error("プロフィールが一致しないのに紐付けが呼ばれた")
		}
	})

	t.Run("新しいウォレット以外の署名では紐付けないこと", func(t *testing.T) {
		t.Parallel()

		current := newTestWallet(t)
		added := newTestWallet(t)
		flow := newTestLoginFlow(t, nil)
		rec := &recordingBinder{status: "OK"}
		n, _ := flow.Challenge(ctx, added.address)
		_, err := NewWalletBinder(flow, rec).Bind(ctx, caller(current), "profile-1", added.address, n.Nonce, current.sign(t, n.Message))
		if !errors.Is(err, apperror.ErrWrongSigner) {
			t.Errorf("Bind() = %v, want ErrWrongSigner", err)
		}
		if rec.called {
			t.Error("署名が不正なのに紐付けが呼ばれた")
		}
	})

	t.Run("紐付け先の失敗を返すこと", func(t *testing.T) {
		t.Parallel()

		current := newTestWallet(t)
		added := newTestWallet(t)
		flow := newTestLoginFlow(t, nil)
		n, _ := flow.Challenge(ctx, added.address)
		_, err := NewWalletBinder(flow, &recordingBinder{err: apperror.ErrConflict}).Bind(ctx, caller(current), "profile-1", added.address, n.Nonce, added.sign(t, n.Message))
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("Bind() = %v, want ErrConflict", err)
		}
	})

	t.Run("紐付け先が無い場合はErrNotFoundになること", func(t *testing.T) {
		t.Parallel()

		current := newTestWallet(t)
		binder := NewWalletBinder(newTestLoginFlow(t, nil), nil)
		if binder.Enabled() {
			t.Error("Enabled() = true, want false")
		}
		if _, err := binder.Bind(ctx, caller(current), "profile-1", current.address, "", "0x"); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("Bind() = %v, want ErrNotFound", err)
		}
	})
}
