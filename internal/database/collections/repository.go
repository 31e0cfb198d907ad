package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/mapimport/internal/entities"
)

var ErrNotFound = errors.New("collection not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns a collection without its datasets.
func (r *Repository) Get(ctx context.Context, id string) (*entities.Collection, error) {
	var c entities.Collection
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", id, err)
	}
	return &c, nil
}

// GetWithDatasets returns a collection and its datasets, oldest first.
func (r *Repository) GetWithDatasets(ctx context.Context, id string) (*entities.Collection, error) {
	var c entities.Collection
	err := r.db.WithContext(ctx).Preload("Datasets", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", id, err)
	}
	return &c, nil
}

// Create registers a new empty, loaded collection.
func (r *Repository) Create(ctx context.Context, name string) (*entities.Collection, error) {
	c := &entities.Collection{
		ID:     uuid.NewString(),
		Name:   name,
		Loaded: true,
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// List returns every collection in creation order.
func (r *Repository) List(ctx context.Context) ([]entities.Collection, error) {
	var out []entities.Collection
	err := r.db.WithContext(ctx).Omit("remote_cache").Order("created_at ASC, id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return out, nil
}

// ListRemote returns the collections backed by a remote link.
func (r *Repository) ListRemote(ctx context.Context) ([]entities.Collection, error) {
	var out []entities.Collection
	err := r.db.WithContext(ctx).Omit("remote_cache").
		Where("remote_url <> ''").
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list remote collections: %w", err)
	}
	return out, nil
}

// Empty removes every dataset and the remote snapshot of a collection.
func (r *Repository) Empty(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&entities.Dataset{}).Error; err != nil {
			return fmt.Errorf("delete datasets: %w", err)
		}
		res := tx.Model(&entities.Collection{}).Where("id = ?", id).Updates(map[string]any{
			"remote_cache":      nil,
			"remote_fetched_at": nil,
		})
		if res.Error != nil {
			return fmt.Errorf("reset remote snapshot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetRemoteLink replaces the remote link of a collection. The previous
// snapshot is dropped so the next refresh fetches the new URL.
func (r *Repository) SetRemoteLink(ctx context.Context, id string, link entities.RemoteLink) error {
	res := r.db.WithContext(ctx).Model(&entities.Collection{}).Where("id = ?", id).Updates(map[string]any{
		"remote_url":                      link.URL,
		"remote_format":                   link.Format,
		"remote_proxied":                  link.Proxied,
		"remote_refresh_interval_seconds": link.RefreshIntervalSeconds,
		"remote_cache":                    nil,
		"remote_fetched_at":               nil,
	})
	if res.Error != nil {
		return fmt.Errorf("set remote link on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AddDataset(ctx context.Context, d *entities.Dataset) error {
	if d.Size == 0 {
		d.Size = len(d.Data)
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("add dataset to %s: %w", d.CollectionID, err)
	}
	return nil
}

// StoreRemoteSnapshot saves the latest remote payload and marks the
// collection loaded.
func (r *Repository) StoreRemoteSnapshot(ctx context.Context, id string, data []byte, fetchedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&entities.Collection{}).Where("id = ?", id).Updates(map[string]any{
		"remote_cache":      data,
		"remote_fetched_at": fetchedAt,
		"loaded":            true,
	})
	if res.Error != nil {
		return fmt.Errorf("store remote snapshot of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetLoaded(ctx context.Context, id string, loaded bool) error {
	res := r.db.WithContext(ctx).Model(&entities.Collection{}).Where("id = ?", id).Update("loaded", loaded)
	if res.Error != nil {
		return fmt.Errorf("set loaded on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll drops every collection, dataset and project row and stores the
// given ones in a single transaction.
func (r *Repository) ReplaceAll(ctx context.Context, project *entities.Project, collections []entities.Collection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&entities.Dataset{}, &entities.Collection{}, &entities.Project{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		if project != nil {
			if err := tx.Create(project).Error; err != nil {
				return fmt.Errorf("create project: %w", err)
			}
		}
		for i := range collections {
			if collections[i].ID == "" {
				collections[i].ID = uuid.NewString()
			}
			if err := tx.Create(&collections[i]).Error; err != nil {
				return fmt.Errorf("create collection %s: %w", collections[i].Name, err)
			}
		}
		return nil
	})
}
