package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"arborplan/internal/domain"
)

// HashPassword digests a password for storage and comparison.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertAdminUser(ctx context.Context, u domain.AdminUser) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO admin_users(id,email,password_digest,created_at) VALUES (?,?,?,?)`,
		u.ID, u.Email, u.PasswordDigest, u.CreatedAt)
	return err
}

func (r Repo) GetAdminUserByEmail(ctx context.Context, email string) (domain.AdminUser, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,email,password_digest,created_at FROM admin_users WHERE email=?`, email)
	var u domain.AdminUser
	err := row.Scan(&u.ID, &u.Email, &u.PasswordDigest, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}
