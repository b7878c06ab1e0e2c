package auth

import (
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nao1215/walletgate/pkg/apperror"
)

// Verifier はpersonal_sign形式の署名から署名者を復元して照合する。
type Verifier struct {
	disabled bool
}

// NewVerifier は新しいVerifierを生成する。
// disabledがtrueの場合は署名を検証しない。開発環境以外で有効にしてはならない。
func NewVerifier(disabled bool) *Verifier {
	if disabled {
		log.Printf("[Auth] 警告: 署名検証が無効化されています。本番環境では使用しないでください")
	}
	return &Verifier{disabled: disabled}
}

// Verify はmessageへの署名がwalletによるものか検証する。
// 署名の形式不正や復元失敗も含め、一致しない場合はすべてErrWrongSignerを返す。
func (v *Verifier) Verify(message, signature, wallet string) error {
	if v.disabled {
		return nil
	}
	claimed, err := NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return apperror.ErrWrongSigner.Wrap(err)
	}
	if recovered != claimed {
		return apperror.ErrWrongSigner.WithMessage("署名者 %s がウォレット %s と一致しません", recovered, claimed)
	}
	return nil
}

// RecoverAddress はEIP-191形式の署名から署名者のアドレスを復元する。
// 署名は65バイトのr||s||vで、vは0/1と27/28のどちらも受け付ける。
func RecoverAddress(message, signature string) (string, error) {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("署名のデコードに失敗: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("署名の長さが不正: %dバイト", len(sig))
	}
	switch v := sig[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] = v - 27
	default:
		return "", fmt.Errorf("リカバリIDが不正: %d", v)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("公開鍵の復元に失敗: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
