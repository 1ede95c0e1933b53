package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/cache"
	"github.com/Rdemo143/RenTO/internal/domain"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/tx"
)

// Directory reads user profiles from the identity provider's users table.
// It never writes to it.
type Directory struct {
	DB    *sql.DB
	Cache *cache.Cache
}

func (d *Directory) GetUser(ctx context.Context, id string) (*domain.UserSummary, error) {
	if d.Cache != nil {
		if u, err := d.Cache.GetUser(ctx, id); err == nil && u != nil {
			return u, nil
		}
	}

	var u domain.UserSummary
	var picture sql.NullString
	err := tx.Retry(ctx, func(ctx context.Context) error {
		return d.DB.QueryRowContext(ctx, `
			SELECT id, name, email, role, profile_picture
			FROM users
			WHERE id = $1
		`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &picture)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u.ProfilePicture = picture.String

	if d.Cache != nil {
		if err := d.Cache.SetUser(ctx, &u); err != nil {
			observability.GetLogger(ctx).Debug("user cache set failed", zap.Error(err))
		}
	}
	return &u, nil
}

// GetUsers resolves many ids at once; unknown ids are absent from the result.
func (d *Directory) GetUsers(ctx context.Context, ids []string) (map[string]*domain.UserSummary, error) {
	out := make(map[string]*domain.UserSummary, len(ids))
	var missing []string
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if d.Cache != nil {
			if u, err := d.Cache.GetUser(ctx, id); err == nil && u != nil {
				out[id] = u
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	err := tx.Retry(ctx, func(ctx context.Context) error {
		rows, err := d.DB.QueryContext(ctx, `
			SELECT id, name, email, role, profile_picture
			FROM users
			WHERE id = ANY($1)
		`, pq.Array(missing))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u domain.UserSummary
			var picture sql.NullString
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &picture); err != nil {
				return err
			}
			u.ProfilePicture = picture.String
			out[u.ID] = &u
			if d.Cache != nil {
				_ = d.Cache.SetUser(ctx, &u)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeviceToken returns the push token registered for the user, or "" when the
// user has none.
func (d *Directory) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := tx.Retry(ctx, func(ctx context.Context) error {
		return d.DB.QueryRowContext(ctx, `
			SELECT fcm_token FROM users WHERE id = $1
		`, userID).Scan(&token)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return token.String, nil
}
