package implementation

import (
	"context"
	"errors"
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/mapper"
	"ai-queryrefine-be/internal/model"
	"ai-queryrefine-be/internal/repository/contract"
	"ai-queryrefine-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ValueMappingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ValueMappingMapper
}

func NewValueMappingRepository(db *gorm.DB) contract.ValueMappingRepository {
	return &ValueMappingRepositoryImpl{
		db:     db,
		mapper: mapper.NewValueMappingMapper(),
	}
}

func (r *ValueMappingRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ValueMappingRepositoryImpl) Upsert(ctx context.Context, mapping *entity.ValueMapping) error {
	m := r.mapper.ToModel(mapping)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "session_id"}, {Name: "label"}, {Name: "property"}, {Name: "raw_value"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"resolved_value", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*mapping = *r.mapper.ToEntity(m)
	return nil
}

func (r *ValueMappingRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ValueMapping, error) {
	var m model.ValueMapping
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ValueMappingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ValueMapping{}).Count(&count).Error
	return count, err
}

func (r *ValueMappingRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := specification.CreatedBefore{Cutoff: cutoff}.
		Apply(r.db.WithContext(ctx)).
		Delete(&model.ValueMapping{})
	return res.RowsAffected, res.Error
}
