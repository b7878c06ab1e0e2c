package profile

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/walletgate/pkg/apperror"
	"github.com/nao1215/walletgate/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore はローカルのSQLiteにプロフィールとウォレットの対応を保存する。
// 未登録のウォレットでログインすると新しいプロフィールを作成する。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite はデータベースを開き、スキーマを適用する。
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// :memory: でも全クエリが同じデータベースを見るよう接続は1本に絞る
	db.SetMaxOpenConns(1)
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lookup はウォレットが属するプロフィールを返す。未登録なら新規作成する。
func (s *SQLiteStore) Lookup(ctx context.Context, wallet string) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var profileID string
	err = tx.QueryRowContext(ctx, "SELECT profile_id FROM profile_wallets WHERE wallet = ?", wallet).Scan(&profileID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		profileID = uuid.New().String()
		if _, err := tx.ExecContext(ctx, "INSERT INTO profiles (id) VALUES (?)", profileID); err != nil {
			return Profile{}, fmt.Errorf("プロフィール作成に失敗: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO profile_wallets (wallet, profile_id) VALUES (?, ?)", wallet, profileID); err != nil {
			return Profile{}, fmt.Errorf("ウォレット登録に失敗: %w", err)
		}
	case err != nil:
		return Profile{}, fmt.Errorf("プロフィール取得に失敗: %w", err)
	}

	wallets, err := walletsOf(ctx, tx, profileID)
	if err != nil {
		return Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("コミットに失敗: %w", err)
	}
	return Profile{ID: profileID, Wallets: wallets}, nil
}

// Bind はウォレットをプロフィールに追加する。
// 既に同じプロフィールに紐付いている場合は何もせず、別のプロフィールに紐付いている場合はErrConflict。
func (s *SQLiteStore) Bind(ctx context.Context, req BindRequest) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles WHERE id = ?", req.ProfileID).Scan(&exists); err != nil {
		return "", fmt.Errorf("プロフィール取得に失敗: %w", err)
	}
	if exists == 0 {
		return "", apperror.ErrNotFound.WithMessage("プロフィール %s が見つかりません", req.ProfileID)
	}

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT profile_id FROM profile_wallets WHERE wallet = ?", req.NewWallet).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO profile_wallets (wallet, profile_id) VALUES (?, ?)", req.NewWallet, req.ProfileID); err != nil {
			return "", fmt.Errorf("ウォレット登録に失敗: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("ウォレット取得に失敗: %w", err)
	case owner != req.ProfileID:
		return "", apperror.ErrConflict
	default:
		return "ALREADY_BOUND", nil
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("コミットに失敗: %w", err)
	}
	return "OK", nil
}

func walletsOf(ctx context.Context, tx *sql.Tx, profileID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT wallet FROM profile_wallets WHERE profile_id = ? ORDER BY bound_at, wallet", profileID)
	if err != nil {
		return nil, fmt.Errorf("ウォレット一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
