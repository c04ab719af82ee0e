package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"risk-review-system/internal/models"
	"risk-review-system/internal/storage"
	"risk-review-system/internal/xerrors"
)

// UserDirectory ведение справочника пользователей и ролей
type UserDirectory struct {
	users  storage.UserRepository
	logger *zap.Logger
}

func NewUserDirectory(users storage.UserRepository, logger *zap.Logger) *UserDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDirectory{users: users, logger: logger}
}

func (d *UserDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, xerrors.Validation("id", "is required")
	}
	return d.users.GetUser(ctx, id)
}

// SaveUser создает или обновляет пользователя
func (d *UserDirectory) SaveUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	if err := d.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	d.logger.Info("user saved",
		zap.String("user_id", user.ID),
		zap.String("organization_id", user.OrganizationID),
		zap.String("role", string(user.Role)),
		zap.Bool("is_active", user.IsActive),
	)
	return user, nil
}

// Seed добавляет отсутствующих пользователей, существующие записи не меняются
func (d *UserDirectory) Seed(ctx context.Context, users []*models.User) (int, error) {
	created := 0
	for _, u := range users {
		_, err := d.users.GetUser(ctx, u.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, xerrors.ErrNotFound) {
			return created, fmt.Errorf("failed to look up user %s: %w", u.ID, err)
		}
		if _, err := d.SaveUser(ctx, u); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func validateUser(u *models.User) error {
	switch {
	case u == nil:
		return xerrors.Validation("user", "is required")
	case u.ID == "":
		return xerrors.Validation("id", "is required")
	case u.OrganizationID == "":
		return xerrors.Validation("organization_id", "is required")
	case !u.Role.IsValid():
		return xerrors.Validation("role", fmt.Sprintf("unknown role %q", u.Role))
	}
	return nil
}

// ParseSeedUsers разбирает записи вида "id:organization:role[:name]"
func ParseSeedUsers(entries []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, xerrors.Validation("seed_users", fmt.Sprintf("malformed entry %q", entry))
		}
		u := &models.User{
			ID:             strings.TrimSpace(parts[0]),
			OrganizationID: strings.TrimSpace(parts[1]),
			Role:           models.Role(strings.ToLower(strings.TrimSpace(parts[2]))),
			IsActive:       true,
		}
		u.Name = u.ID
		if len(parts) == 4 && strings.TrimSpace(parts[3]) != "" {
			u.Name = strings.TrimSpace(parts[3])
		}
		if err := validateUser(u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

var _ UserAdmin = (*UserDirectory)(nil)
