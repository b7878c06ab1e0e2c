package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/nao1215/walletgate/internal/profile"
	"github.com/nao1215/walletgate/internal/session"
)

// Stage はログインの段階。
type Stage string

const (
	// StageChallengeIssued はnonceを発行した段階。
	StageChallengeIssued Stage = "CHALLENGE_ISSUED"
	// StageSignatureVerified は署名を検証した段階。
	StageSignatureVerified Stage = "SIGNATURE_VERIFIED"
	// StageSessionIssued はJWTとリフレッシュトークンを発行した段階。
	StageSessionIssued Stage = "SESSION_ISSUED"
	// StageRefreshed はセッションを更新した段階。
	StageRefreshed Stage = "REFRESHED"
)

// Verified は署名検証を通過したウォレット。
// 値はverifyChallengeでのみ生成され、セッション発行の入力になる。
type Verified struct {
	// Wallet は所有が確認されたウォレット。
	Wallet string
	// Nonce は消費したチャレンジ。
	Nonce session.ClientNonce
}

// LoginFlow はウォレット署名によるログインの各段階をまとめる。
type LoginFlow struct {
	nonces   *NonceService
	verifier *Verifier
	tokens   *TokenService
	profiles profile.Provider
}

// NewLoginFlow は新しいLoginFlowを生成する。
func NewLoginFlow(nonces *NonceService, verifier *Verifier, tokens *TokenService, profiles profile.Provider) *LoginFlow {
	if profiles == nil {
		profiles = profile.SingleProvider{}
	}
	return &LoginFlow{nonces: nonces, verifier: verifier, tokens: tokens, profiles: profiles}
}

// Challenge はウォレットにnonceを発行する。
func (f *LoginFlow) Challenge(ctx context.Context, wallet string) (session.ClientNonce, error) {
	n, err := f.nonces.Start(ctx, wallet)
	if err != nil {
		return session.ClientNonce{}, err
	}
	logStage(StageChallengeIssued, n.Wallet)
	return n, nil
}

// Login はnonceへの署名を検証し、セッションを発行する。
func (f *LoginFlow) Login(ctx context.Context, wallet, nonce, signature string) (Session, error) {
	verified, err := f.verifyChallenge(ctx, wallet, nonce, signature)
	if err != nil {
		return Session{}, err
	}
	return f.issueSession(ctx, verified)
}

// Refresh はJWTとリフレッシュトークンを新しい組に交換する。
func (f *LoginFlow) Refresh(ctx context.Context, wallet, token, refreshToken string) (Session, error) {
	s, err := f.tokens.Refresh(ctx, wallet, token, refreshToken)
	if err != nil {
		return Session{}, err
	}
	logStage(StageRefreshed, wallet)
	return s, nil
}

// verifyChallenge はnonceを消費し、そのメッセージへの署名を検証する。
// nonceは検証結果に関わらず消費される。
func (f *LoginFlow) verifyChallenge(ctx context.Context, wallet, nonce, signature string) (Verified, error) {
	n, err := f.nonces.Consume(ctx, wallet, nonce)
	if err != nil {
		return Verified{}, err
	}
	if err := f.verifier.Verify(n.Message, signature, n.Wallet); err != nil {
		log.Printf("[Auth] 署名検証に失敗しました: wallet=%s: %v", n.Wallet, err)
		return Verified{}, err
	}
	logStage(StageSignatureVerified, n.Wallet)
	return Verified{Wallet: n.Wallet, Nonce: n}, nil
}

// issueSession は検証済みウォレットのプロフィールを解決してセッションを発行する。
func (f *LoginFlow) issueSession(ctx context.Context, v Verified) (Session, error) {
	prof, err := f.profiles.Lookup(ctx, v.Wallet)
	if err != nil {
		return Session{}, fmt.Errorf("プロフィールの解決に失敗: %w", err)
	}
	s, err := f.tokens.Issue(ctx, WalletIdentity{
		CurrentWallet:  v.Wallet,
		ProfileWallets: prof.Wallets,
		ProfileID:      prof.ID,
	})
	if err != nil {
		return Session{}, err
	}
	logStage(StageSessionIssued, v.Wallet)
	return s, nil
}

func logStage(stage Stage, wallet string) {
	log.Printf("[Auth] stage=%s wallet=%s", stage, wallet)
}
