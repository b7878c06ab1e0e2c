package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/nao1215/walletgate/internal/profile"
	"github.com/nao1215/walletgate/pkg/apperror"
)

// BindResult はウォレット紐付けの結果。
type BindResult struct {
	// Status はプロフィールサービスが返した状態。
	Status string `json:"status"`
	// Session は紐付けたウォレットで発行したセッション。
	Session
}

// WalletBinder は署名で所有を確認したウォレットをプロフィールに追加する。
type WalletBinder struct {
	flow   *LoginFlow
	binder profile.Binder
}

// NewWalletBinder は新しいWalletBinderを生成する。binderがnilの場合、紐付けは常に失敗する。
func NewWalletBinder(flow *LoginFlow, binder profile.Binder) *WalletBinder {
	return &WalletBinder{flow: flow, binder: binder}
}

// Enabled は紐付け先が設定されている場合にtrueを返す。
func (b *WalletBinder) Enabled() bool {
	return b.binder != nil
}

// Bind はnewWalletへのチャレンジの署名を検証してから、呼び出し元のプロフィールに追加する。
// 追加後は新しいウォレットのセッションを発行して返す。
// profileIDが呼び出し元のプロフィールと異なる場合はErrProfileMismatch。
func (b *WalletBinder) Bind(ctx context.Context, id *WalletIdentity, profileID, newWallet, nonce, signature string) (BindResult, error) {
	if b.binder == nil {
		return BindResult{}, apperror.ErrNotFound.WithMessage("ウォレットの紐付けは有効になっていません")
	}
	if id.ProfileID != profileID {
		return BindResult{}, apperror.ErrProfileMismatch.WithMessage("プロフィール %s は呼び出し元のプロフィールではありません", profileID)
	}

	verified, err := b.flow.verifyChallenge(ctx, newWallet, nonce, signature)
	if err != nil {
		return BindResult{}, err
	}

	status, err := b.binder.Bind(ctx, profile.BindRequest{
		ProfileID:      id.ProfileID,
		CurrentWallet:  id.CurrentWallet,
		ProfileWallets: id.ProfileWallets,
		NewWallet:      verified.Wallet,
	})
	if err != nil {
		return BindResult{}, fmt.Errorf("ウォレットの紐付けに失敗: %w", err)
	}
	log.Printf("[Auth] ウォレットを紐付けました: profileId=%s wallet=%s status=%s", id.ProfileID, verified.Wallet, status)

	s, err := b.flow.issueSession(ctx, verified)
	if err != nil {
		return BindResult{}, err
	}
	return BindResult{Status: status, Session: s}, nil
}
