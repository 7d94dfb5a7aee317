package mapper

import (
	"encoding/json"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/model"

	"gorm.io/datatypes"
)

type ConversationTurnMapper struct{}

func NewConversationTurnMapper() *ConversationTurnMapper {
	return &ConversationTurnMapper{}
}

func (m *ConversationTurnMapper) ToEntity(t *model.ConversationTurn) *entity.ConversationTurn {
	if t == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &metadata)
	}

	return &entity.ConversationTurn{
		Id:        t.Id,
		RequestId: t.RequestId,
		SessionId: t.SessionId,
		UserId:    t.UserId,
		Sequence:  t.Sequence,
		Stage:     t.Stage,
		Content:   t.Content,
		Metadata:  metadata,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ConversationTurnMapper) ToModel(t *entity.ConversationTurn) *model.ConversationTurn {
	if t == nil {
		return nil
	}

	var metadata datatypes.JSON
	if t.Metadata != nil {
		if raw, err := json.Marshal(t.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	return &model.ConversationTurn{
		Id:        t.Id,
		RequestId: t.RequestId,
		SessionId: t.SessionId,
		UserId:    t.UserId,
		Sequence:  t.Sequence,
		Stage:     t.Stage,
		Content:   t.Content,
		Metadata:  metadata,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ConversationTurnMapper) ToEntities(turns []*model.ConversationTurn) []*entity.ConversationTurn {
	entities := make([]*entity.ConversationTurn, len(turns))
	for i, t := range turns {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
