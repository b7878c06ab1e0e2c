package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/walletgate/pkg/apperror"
)

// TestTokenService はJWTとリフレッシュトークンの発行、更新を検証する。
func TestTokenService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	const wallet = "0x52908400098527886e0f7030069857d2e4169ee7"
	identity := WalletIdentity{
		CurrentWallet:  wallet,
		ProfileWallets: []string{wallet, "0x00000000000000000000000000000000000000bb"},
		ProfileID:      "profile-1",
	}

	newService := func(t *testing.T) (*TokenService, *fixedClock) {
		t.Helper()
		store, _ := newTestRedisStore(t)
		clock := &fixedClock{t: time.Now().Truncate(time.Second)}
		return newTestTokenService(store, clock), clock
	}

	t.Run("発行したJWTから呼び出し元を復元できること", func(t *testing.T) {
		t.Parallel()

		s, _ := newService(t)
		sess, err := s.Issue(ctx, identity)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}
		if sess.JWT == "" || sess.RefreshToken == "" {
			t.Fatalf("Issue() = %+v", sess)
		}
		got, err := s.Parse(sess.JWT)
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if got.CurrentWallet != wallet || got.ProfileID != "profile-1" || len(got.ProfileWallets) != 2 {
			t.Errorf("Parse() = %+v", got)
		}
		if roles := got.Authorities(); len(roles) != 1 || roles[0] != "ALL" {
			t.Errorf("Authorities() = %v, want [ALL]", roles)
		}
		if got.ID() != "profile-1" {
			t.Errorf("ID() = %q", got.ID())
		}
	})

	t.Run("期限切れのJWTはErrTokenExpiredになること", func(t *testing.T) {
		t.Parallel()

		s, clock := newService(t)
		sess, _ := s.Issue(ctx, identity)
		clock.advance(2 * time.Hour)
		if _, err := s.Parse(sess.JWT); !errors.Is(err, apperror.ErrTokenExpired) {
			t.Errorf("Parse() = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("改ざんや別の鍵のJWTはErrInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		s, clock := newService(t)
		sess, _ := s.Issue(ctx, identity)

		other := newTestTokenService(s.store, clock)
		other.cfg.Secret = []byte("other-secret")
		foreign, _ := other.Issue(ctx, identity)

		none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"currentWallet": wallet, "exp": clock.t.Add(time.Hour).Unix()})
		unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

		for name, token := range map[string]string{
			"改ざん":   sess.JWT + "x",
			"別の鍵":   foreign.JWT,
			"署名なし":  unsigned,
			"JWTでない": "not-a-jwt",
		} {
			if _, err := s.Parse(token); !errors.Is(err, apperror.ErrInvalidToken) {
				t.Errorf("%s: Parse() = %v, want ErrInvalidToken", name, err)
			}
		}
	})

	t.Run("発行者が異なるJWTはErrInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		s, clock := newService(t)
		other := newTestTokenService(s.store, clock)
		other.cfg.Issuer = "someone-else"
		sess, _ := other.Issue(ctx, identity)
		if _, err := s.Parse(sess.JWT); !errors.Is(err, apperror.ErrInvalidToken) {
			t.Errorf("Parse() = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("リフレッシュで新しい組が発行され古い組は使えないこと", func(t *testing.T) {
		t.Parallel()

		s, clock := newService(t)
		first, _ := s.Issue(ctx, identity)
		clock.advance(2 * time.Hour)

		second, err := s.Refresh(ctx, wallet, first.JWT, first.RefreshToken)
		if err != nil {
			t.Fatalf("期限切れJWTでのRefresh()でエラーが発生: %v", err)
		}
		if second.RefreshToken == first.RefreshToken || second.JWT == first.JWT {
			t.Error("リフレッシュで同じトークンが返った")
		}
		got, err := s.Parse(second.JWT)
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if got.ProfileID != "profile-1" {
			t.Errorf("ProfileID = %q", got.ProfileID)
		}

		if _, err := s.Refresh(ctx, wallet, first.JWT, first.RefreshToken); !errors.Is(err, apperror.ErrNotValidRT) {
			t.Errorf("古い組でのRefresh() = %v, want ErrNotValidRT", err)
		}
		if _, err := s.Refresh(ctx, wallet, second.JWT, second.RefreshToken); err != nil {
			t.Errorf("新しい組でのRefresh()でエラーが発生: %v", err)
		}
	})

	t.Run("別のJWTに紐付くリフレッシュトークンは使えないこと", func(t *testing.T) {
		t.Parallel()

		s, _ := newService(t)
		a, _ := s.Issue(ctx, identity)
		b, _ := s.Issue(ctx, identity)
		if _, err := s.Refresh(ctx, wallet, a.JWT, b.RefreshToken); !errors.Is(err, apperror.ErrNotValidRT) {
			t.Errorf("Refresh() = %v, want ErrNotValidRT", err)
		}
		if _, err := s.Refresh(ctx, wallet, b.JWT, b.RefreshToken); err != nil {
			t.Errorf("失敗後の正しい組でのRefresh()でエラーが発生: %v", err)
		}
	})

	t.Run("JWTのウォレットと異なる場合はErrWrongWalletになること", func(t *testing.T) {
		t.Parallel()

		s, _ := newService(t)
		sess, _ := s.Issue(ctx, identity)
		_, err := s.Refresh(ctx, "0x00000000000000000000000000000000000000bb", sess.JWT, sess.RefreshToken)
		if !errors.Is(err, apperror.ErrWrongWallet) {
			t.Errorf("Refresh() = %v, want ErrWrongWallet", err)
		}
	})

	t.Run("存在しないリフレッシュトークンはErrNotValidRTになること", func(t *testing.T) {
		t.Parallel()

		s, _ := newService(t)
		sess, _ := s.Issue(ctx, identity)
		if _, err := s.Refresh(ctx, wallet, sess.JWT, "missing"); !errors.Is(err, apperror.ErrNotValidRT) {
			t.Errorf("Refresh() = %v, want ErrNotValidRT", err)
		}
	})

	t.Run("有効期限を過ぎたリフレッシュトークンは使えないこと", func(t *testing.T) {
		t.Parallel()

		store, mr := newTestRedisStore(t)
		s := newTestTokenService(store, &fixedClock{t: time.Now()})
		sess, _ := s.Issue(ctx, identity)
		mr.FastForward(8 * 24 * time.Hour)
		if _, err := s.Refresh(ctx, wallet, sess.JWT, sess.RefreshToken); !errors.Is(err, apperror.ErrNotValidRT) {
			t.Errorf("Refresh() = %v, want ErrNotValidRT", err)
		}
	})

	t.Run("同時のリフレッシュは1つだけ成功すること", func(t *testing.T) {
		t.Parallel()

		s, _ := newService(t)
		sess, _ := s.Issue(ctx, identity)

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Refresh(ctx, wallet, sess.JWT, sess.RefreshToken); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if successes != 1 {
			t.Errorf("成功数 = %d, want 1", successes)
		}
	})
}

// TestHashJWT はjwtHashが決定的であることを検証する。
func TestHashJWT(t *testing.T) {
	t.Parallel()

	if HashJWT("a.b.c") != HashJWT("a.b.c") {
		t.Error("同じ入力でハッシュが異なる")
	}
	if HashJWT("a.b.c") == HashJWT("a.b.d") {
		t.Error("異なる入力でハッシュが一致")
	}
}
