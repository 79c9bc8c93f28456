package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func normalizeFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: folder name is empty", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(name) > 255 {
		return "", fmt.Errorf("%w: folder name is too long", apperr.ErrValidation)
	}
	return name, nil
}

func getFolder(db *gorm.DB, userID, folderID uint64) (*model.Folder, error) {
	var folder model.Folder
	err := db.Where("id = ? AND user_id = ?", folderID, userID).Take(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: folder %d", apperr.ErrNotFound, folderID)
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func folderNameTaken(db *gorm.DB, userID uint64, name string, exceptID uint64) (bool, error) {
	var count int64
	err := db.Model(&model.Folder{}).
		Where("user_id = ? AND name = ? AND id <> ?", userID, name, exceptID).
		Count(&count).Error
	return count > 0, err
}

// CreateFolder creates a user folder. Names are unique per user.
func CreateFolder(ctx context.Context, userID uint64, name string) (*model.Folder, error) {
	name, err := normalizeFolderName(name)
	if err != nil {
		return nil, err
	}
	db := dbFor(ctx, nil)
	taken, err := folderNameTaken(db, userID, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: folder %q already exists", apperr.ErrConflict, name)
	}
	folder := &model.Folder{UserID: userID, Name: name}
	if err := db.Create(folder).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: folder %q already exists", apperr.ErrConflict, name)
		}
		return nil, err
	}
	return folder, nil
}

// ListFolders lists the user's folders, system folders first.
func ListFolders(ctx context.Context, userID uint64) ([]model.Folder, error) {
	var folders []model.Folder
	err := dbFor(ctx, nil).
		Where("user_id = ?", userID).
		Order("is_system DESC").
		Order("name ASC").
		Find(&folders).Error
	return folders, err
}

// RenameFolder renames a user folder. System folders keep their names.
func RenameFolder(ctx context.Context, userID, folderID uint64, name string) (*model.Folder, error) {
	name, err := normalizeFolderName(name)
	if err != nil {
		return nil, err
	}
	db := dbFor(ctx, nil)
	folder, err := getFolder(db, userID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.IsSystem {
		return nil, fmt.Errorf("%w: system folder cannot be renamed", apperr.ErrConflict)
	}
	if folder.Name == name {
		return folder, nil
	}
	taken, err := folderNameTaken(db, userID, name, folderID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: folder %q already exists", apperr.ErrConflict, name)
	}
	if err := db.Model(folder).Update("name", name).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: folder %q already exists", apperr.ErrConflict, name)
		}
		return nil, err
	}
	folder.Name = name
	return folder, nil
}

// DeleteFolder removes a folder and its memberships. Assets are untouched.
func DeleteFolder(ctx context.Context, userID, folderID uint64) error {
	err := dbFor(ctx, nil).Transaction(func(tx *gorm.DB) error {
		folder, err := getFolder(tx, userID, folderID)
		if err != nil {
			return err
		}
		if folder.IsSystem {
			return fmt.Errorf("%w: system folder cannot be deleted", apperr.ErrConflict)
		}
		if err := tx.Where("folder_id = ?", folderID).Delete(&model.AssetFolder{}).Error; err != nil {
			return err
		}
		return tx.Delete(folder).Error
	})
	if err != nil {
		return err
	}
	invalidateAssetListCache(userID)
	return nil
}

// EnsureSystemFolders provisions the folders every user starts with.
func EnsureSystemFolders(ctx context.Context, tx *gorm.DB, userID uint64) error {
	folder := &model.Folder{UserID: userID, Name: model.SystemFolderCameraUploads, IsSystem: true}
	return dbFor(ctx, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(folder).Error
}
