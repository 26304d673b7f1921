package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/betagouv/zacharie-sub006/internal/db"
	"github.com/betagouv/zacharie-sub006/internal/model"
)

// IntermediaireRepository defines the server-side custody hop persistence.
// Hops are addressed by their deterministic composite identity, so the write
// path upserts instead of duplicating when a field device replays the same
// hop twice.
type IntermediaireRepository interface {
	Upsert(ctx context.Context, hop *model.Intermediaire) (*model.Intermediaire, error)
	GetByID(ctx context.Context, id string) (*model.Intermediaire, error)
	FindByFiche(ctx context.Context, ficheID string) ([]*model.Intermediaire, error)
}

// intermediaireRepository implements IntermediaireRepository
type intermediaireRepository struct {
	db *gorm.DB
}

// NewIntermediaireRepository creates a new custody hop repository
func NewIntermediaireRepository(database *gorm.DB) IntermediaireRepository {
	return &intermediaireRepository{db: database}
}

// Upsert creates or updates a hop by its deterministic identity. A completed
// hop keeps its check_finished_at; hops are never deleted.
func (r *intermediaireRepository) Upsert(ctx context.Context, hop *model.Intermediaire) (*model.Intermediaire, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"check_finished_at", "updated_at"}),
		}).
		Create(hop).Error
	if err != nil {
		return nil, err
	}
	return hop, nil
}

// GetByID gets a hop by its deterministic identity
func (r *intermediaireRepository) GetByID(ctx context.Context, id string) (*model.Intermediaire, error) {
	var hop model.Intermediaire
	err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&hop).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &hop, nil
}

// FindByFiche lists the hops of a fiche in sequence order
func (r *intermediaireRepository) FindByFiche(ctx context.Context, ficheID string) ([]*model.Intermediaire, error) {
	var hops []*model.Intermediaire
	err := r.db.WithContext(ctx).
		Where("fiche_id = ?", ficheID).
		Order("sequence ASC").
		Find(&hops).Error
	if err != nil {
		return nil, err
	}
	return hops, nil
}
