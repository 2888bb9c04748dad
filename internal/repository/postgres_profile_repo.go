package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/accountman/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, bio, location, website, avatar_url, joined_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.Username, &profile.Bio, &profile.Location,
		&profile.Website, &profile.AvatarURL, &profile.JoinedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}

	return profile, nil
}

// FindByUsername は指定ユーザー名のプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUsername(ctx context.Context, username string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, bio, location, website, avatar_url, joined_at, updated_at
		 FROM profiles WHERE username = $1`,
		username,
	).Scan(&profile.UserID, &profile.Username, &profile.Bio, &profile.Location,
		&profile.Website, &profile.AvatarURL, &profile.JoinedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by username: %w", err)
	}

	return profile, nil
}

// Upsert はuser_idをキーにプロフィールを1文でINSERTまたはUPDATEする。
// ON CONFLICT (user_id) DO UPDATE でも別ユーザーとのusername重複は
// profiles_username_keyのUNIQUE違反として失敗するため、ErrUsernameTakenに変換して返す。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	saved := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, username, bio, location, website, avatar_url, joined_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     username   = EXCLUDED.username,
		     bio        = EXCLUDED.bio,
		     location   = EXCLUDED.location,
		     website    = EXCLUDED.website,
		     avatar_url = EXCLUDED.avatar_url,
		     updated_at = now()
		 RETURNING user_id, username, bio, location, website, avatar_url, joined_at, updated_at`,
		profile.UserID, profile.Username, profile.Bio, profile.Location, profile.Website, profile.AvatarURL,
	).Scan(&saved.UserID, &saved.Username, &saved.Bio, &saved.Location,
		&saved.Website, &saved.AvatarURL, &saved.JoinedAt, &saved.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, constraintProfilesUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return saved, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
