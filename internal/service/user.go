package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/repo"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var ErrBadCredentials = errors.New("invalid username or password")

// CreateUser hashes the password and creates the user with a ledger row and system folders.
func CreateUser(ctx context.Context, user *model.User) error {
	user.UserName = strings.TrimSpace(user.UserName)
	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.UserName == "" || user.Email == "" || user.Password == "" {
		return fmt.Errorf("%w: username, email and password are required", apperr.ErrValidation)
	}
	hash, err := utils.GetPwd(user.Password)
	if err != nil {
		return err
	}
	user.Password = hash
	user.IsActive = true

	return repo.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).
			Where("user_name = ? OR email = ?", user.UserName, user.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: username or email already registered", apperr.ErrConflict)
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: username or email already registered", apperr.ErrConflict)
			}
			return err
		}
		if err := EnsureLedger(ctx, tx, user.ID, mediaPolicy().DefaultQuotaBytes); err != nil {
			return err
		}
		return EnsureSystemFolders(ctx, tx, user.ID)
	})
}

// Authenticate checks a username and password and returns the user.
func Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var user model.User
	err := repo.Db.WithContext(ctx).Where("user_name = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPwd(password, user.Password) {
		return nil, ErrBadCredentials
	}
	return &user, nil
}

// FindUserNameById returns username by ID.
func FindUserNameById(ctx context.Context, userId uint64) (string, error) {
	var user model.User
	if err := repo.Db.WithContext(ctx).Where("id = ?", userId).Take(&user).Error; err != nil {
		return "", err
	}
	return user.UserName, nil
}
