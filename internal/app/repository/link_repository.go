package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrDuplicateCode signals a unique-index violation on short_code or
	// custom_alias, e.g. two concurrent creations racing on one alias.
	ErrDuplicateCode = errors.New("short code already in use")
)

// LinkRepository is the authoritative store contract for links. All reads
// and writes go through Postgres; the cache in front of it is never
// consulted here.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	GetByAlias(ctx context.Context, alias string) (*model.Link, error)

	// CodeInUse reports whether code collides with any short_code or
	// custom_alias of a live link.
	CodeInUse(ctx context.Context, code string) (bool, error)
	// AliasInUse is CodeInUse excluding one link, for self-updates.
	AliasInUse(ctx context.Context, alias string, excludeID uint) (bool, error)

	Update(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, link *model.Link) error

	Search(ctx context.Context, text string, limit int) ([]model.Link, error)
	ListProjects(ctx context.Context, ownerID uint) ([]string, error)
	ListByProject(ctx context.Context, ownerID uint, project string) ([]model.Link, error)

	// Cleanup queries.
	ListExpired(ctx context.Context, now time.Time) ([]model.Link, error)
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Link, error)

	// ListCodes streams every known short code, used to seed the bloom
	// filter at startup.
	ListCodes(ctx context.Context) ([]string, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByAlias(ctx context.Context, alias string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("custom_alias = ?", alias).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("short_code = ? OR custom_alias = ?", code, code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) AliasInUse(ctx context.Context, alias string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("(short_code = ? OR custom_alias = ?) AND id <> ?", alias, alias, excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"original_url": link.OriginalURL,
			"custom_alias": link.CustomAlias,
			"expires_at":   link.ExpiresAt,
			"project":      link.Project,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateCode
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

func (r *linkRepository) Delete(ctx context.Context, link *model.Link) error {
	// link_stats rows go with it via the FK cascade.
	result := r.db.WithContext(ctx).Delete(&model.Link{}, link.ID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) Search(ctx context.Context, text string, limit int) ([]model.Link, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("original_url ILIKE ?", "%"+text+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) ListProjects(ctx context.Context, ownerID uint) ([]string, error) {
	var projects []string
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("owner_id = ? AND project IS NOT NULL AND project <> ''", ownerID).
		Distinct().
		Pluck("project", &projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *linkRepository) ListByProject(ctx context.Context, ownerID uint, project string) ([]model.Link, error) {
	var result []model.Link
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND project = ?", ownerID, project).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Link, error) {
	var result []model.Link
	err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListInactiveSince returns links whose most recent stat is older than
// cutoff. The inner join means links that were never accessed have no stat
// rows and are never matched; only the expiry pass can reap those.
func (r *linkRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Link, error) {
	var result []model.Link
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Joins("JOIN link_stats ON link_stats.link_id = links.id").
		Group("links.id").
		Having("MAX(link_stats.accessed_at) < ?", cutoff).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).Model(&model.Link{}).Pluck("short_code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
