package auth

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nao1215/walletgate/pkg/apperror"
)

// NormalizeWallet はウォレットアドレスを小文字の0x付き形式に揃える。
// 0xの有無と大文字小文字は区別しない。アドレスとして不正な場合はErrBadRequest。
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", apperror.ErrBadRequest.WithMessage("ウォレットアドレスが不正です: %q", wallet)
	}
	return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
}

// SameWallet は2つのアドレスが同じウォレットを指す場合にtrueを返す。
func SameWallet(a, b string) bool {
	na, err := NormalizeWallet(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeWallet(b)
	if err != nil {
		return false
	}
	return na == nb
}
