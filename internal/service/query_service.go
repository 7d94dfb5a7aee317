package service

import (
	"context"
	"fmt"

	"ai-queryrefine-be/internal/dto"
	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/specification"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
	"ai-queryrefine-be/pkg/stages"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Runner is satisfied by *orchestrator.Machine
type Runner interface {
	Run(ctx context.Context, sessionID, userID, question string) (*orchestrator.Result, error)
}

type IQueryService interface {
	Ask(ctx context.Context, userID string, req *dto.AskRequest) (*dto.AskResponse, error)
	History(ctx context.Context, userID, sessionID string) ([]*dto.ConversationTurnResponse, error)
	// CanJoin reports whether userID may attach to sessionID. Unused session ids are free.
	CanJoin(ctx context.Context, userID, sessionID string) (bool, error)
}

// RankTarget names where prioritized rows are indexed. Indexing is off when Source is empty.
type RankTarget struct {
	Source    string
	KeyColumn string
}

type queryService struct {
	runner     Runner
	uowFactory unitofwork.RepositoryFactory
	indexer    IPublisherService // optional
	rank       RankTarget
	logger     logger.ILogger
}

func NewQueryService(
	runner Runner,
	uowFactory unitofwork.RepositoryFactory,
	indexer IPublisherService,
	rank RankTarget,
	log logger.ILogger,
) IQueryService {
	return &queryService{
		runner:     runner,
		uowFactory: uowFactory,
		indexer:    indexer,
		rank:       rank,
		logger:     log,
	}
}

func (s *queryService) Ask(ctx context.Context, userID string, req *dto.AskRequest) (*dto.AskResponse, error) {
	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else {
		ok, err := s.CanJoin(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fiber.NewError(fiber.StatusForbidden, "Session belongs to another user")
		}
	}
	requestID := uuid.New()

	res, runErr := s.runner.Run(ctx, sessionID, userID, req.Question)
	if res == nil {
		return nil, runErr
	}
	if runErr != nil {
		// the result already carries the apology for the user
		s.logger.Error("QueryService", "Refinement run failed", map[string]interface{}{
			"request_id":  requestID.String(),
			"session_id":  sessionID,
			"user_id":     userID,
			"termination": string(res.Termination),
			"error":       runErr.Error(),
		})
	}

	if err := s.saveTranscript(ctx, requestID, res); err != nil {
		s.logger.Warn("QueryService", "Failed to persist transcript", map[string]interface{}{
			"request_id": requestID.String(),
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	if visited(res.Route, orchestrator.StagePrioritize) {
		s.publishRows(ctx, res.State)
	}

	return toAskResponse(requestID, res), nil
}

func (s *queryService) History(ctx context.Context, userID, sessionID string) ([]*dto.ConversationTurnResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ConversationTurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByUserID{UserID: userID},
		specification.OrderBy{Field: "created_at"},
		specification.OrderBy{Field: "sequence"},
	)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	out := make([]*dto.ConversationTurnResponse, len(turns))
	for i, t := range turns {
		out[i] = &dto.ConversationTurnResponse{
			RequestId: t.RequestId,
			Sequence:  t.Sequence,
			Stage:     t.Stage,
			Content:   t.Content,
			Metadata:  t.Metadata,
			CreatedAt: t.CreatedAt,
		}
	}
	return out, nil
}

func (s *queryService) CanJoin(ctx context.Context, userID, sessionID string) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	others, err := uow.ConversationTurnRepository().Count(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.NotUserID{UserID: userID},
	)
	if err != nil {
		return false, err
	}
	return others == 0, nil
}

func (s *queryService) saveTranscript(ctx context.Context, requestID uuid.UUID, res *orchestrator.Result) error {
	st := res.State
	turns := make([]*entity.ConversationTurn, 0, len(st.Messages))
	last := len(st.Messages) - 1
	for i, m := range st.Messages {
		turn := &entity.ConversationTurn{
			Id:        uuid.New(),
			RequestId: requestID,
			SessionId: st.SessionID,
			UserId:    st.UserID,
			Sequence:  i,
			Stage:     string(m.Stage),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if i == last {
			turn.Metadata = map[string]interface{}{
				"final":             true,
				"termination":       string(res.Termination),
				"iterations":        st.IterationCount,
				"prompt_tokens":     st.Usage.PromptTokens,
				"completion_tokens": st.Usage.CompletionTokens,
				"query":             st.Query,
			}
		}
		turns = append(turns, turn)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ConversationTurnRepository().CreateBulk(ctx, turns); err != nil {
		return fmt.Errorf("create turns: %w", err)
	}
	return uow.Commit()
}

func (s *queryService) publishRows(ctx context.Context, st *orchestrator.State) {
	if s.indexer == nil || s.rank.Source == "" || len(st.Rows) == 0 {
		return
	}

	rows := make([]map[string]interface{}, len(st.Rows))
	for i, r := range st.Rows {
		rows[i] = r
	}
	msg := dto.IndexRowsMessage{Source: s.rank.Source, KeyColumn: s.rank.KeyColumn, Rows: rows}
	if err := s.indexer.SendMessage(ctx, msg); err != nil {
		s.logger.Warn("QueryService", "Failed to queue rows for indexing", map[string]interface{}{
			"session_id": st.SessionID,
			"rows":       len(rows),
			"error":      err.Error(),
		})
	}
}

func visited(route []orchestrator.Stage, stage orchestrator.Stage) bool {
	for _, s := range route {
		if s == stage {
			return true
		}
	}
	return false
}

func toAskResponse(requestID uuid.UUID, res *orchestrator.Result) *dto.AskResponse {
	st := res.State
	route := make([]string, len(res.Route))
	for i, s := range res.Route {
		route[i] = string(s)
	}
	return &dto.AskResponse{
		RequestId:   requestID,
		SessionId:   st.SessionID,
		Answer:      res.Answer,
		Termination: string(res.Termination),
		Iterations:  st.IterationCount,
		Route:       route,
		Query:       st.Query,
		Usage: dto.TokenUsageResponse{
			PromptTokens:     st.Usage.PromptTokens,
			CompletionTokens: st.Usage.CompletionTokens,
			TotalTokens:      st.Usage.Total(),
		},
	}
}

// ConversationHistory feeds earlier question/answer pairs of a session to the planner
type ConversationHistory struct {
	uowFactory unitofwork.RepositoryFactory
}

var _ stages.History = (*ConversationHistory)(nil)

func NewConversationHistory(uowFactory unitofwork.RepositoryFactory) *ConversationHistory {
	return &ConversationHistory{uowFactory: uowFactory}
}

func (h *ConversationHistory) Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	uow := h.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ConversationTurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.DialogTurns{},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.OrderBy{Field: "sequence", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		role := "assistant"
		if turns[i].Stage == string(orchestrator.StageUser) {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: turns[i].Content})
	}
	return out, nil
}
