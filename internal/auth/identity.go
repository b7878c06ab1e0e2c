package auth

import "slices"

// Principal は認証済みの呼び出し元。
type Principal interface {
	// ID は呼び出し元を一意に識別する値。
	ID() string
	// Authorities は呼び出し元が持つ権限。
	Authorities() []string
}

// WalletIdentity はウォレット署名で認証された呼び出し元。
type WalletIdentity struct {
	// CurrentWallet はログインに使ったウォレット。
	CurrentWallet string `json:"currentWallet"`
	// ProfileWallets はプロフィールに紐付く全ウォレット。
	ProfileWallets []string `json:"profileWallets"`
	// ProfileID はプロフィールID。
	ProfileID string `json:"profileId"`
	// Roles は付与された権限。
	Roles []string `json:"authorities"`
}

// ID はプロフィールIDを返す。
func (w *WalletIdentity) ID() string {
	return w.ProfileID
}

// Authorities は付与された権限の複製を返す。
func (w *WalletIdentity) Authorities() []string {
	return slices.Clone(w.Roles)
}
