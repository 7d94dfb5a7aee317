package mapper

import (
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/model"
)

type ValueMappingMapper struct{}

func NewValueMappingMapper() *ValueMappingMapper {
	return &ValueMappingMapper{}
}

func (m *ValueMappingMapper) ToEntity(v *model.ValueMapping) *entity.ValueMapping {
	if v == nil {
		return nil
	}

	var updatedAt *time.Time
	if !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		updatedAt = &t
	}

	return &entity.ValueMapping{
		Id:            v.Id,
		SessionId:     v.SessionId,
		Label:         v.Label,
		Property:      v.Property,
		RawValue:      v.RawValue,
		ResolvedValue: v.ResolvedValue,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *ValueMappingMapper) ToModel(v *entity.ValueMapping) *model.ValueMapping {
	if v == nil {
		return nil
	}

	var updatedAt time.Time
	if v.UpdatedAt != nil {
		updatedAt = *v.UpdatedAt
	}

	return &model.ValueMapping{
		Id:            v.Id,
		SessionId:     v.SessionId,
		Label:         v.Label,
		Property:      v.Property,
		RawValue:      v.RawValue,
		ResolvedValue: v.ResolvedValue,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}
