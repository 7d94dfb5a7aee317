package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/model"
	"ai-queryrefine-be/internal/repository/specification"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/database"
	"ai-queryrefine-be/pkg/resolutioncache"
	"ai-queryrefine-be/pkg/resolver"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	defer database.Close(gormDB)

	require.NoError(t, gormDB.AutoMigrate(&model.ValueMapping{}, &model.ConversationTurn{}))

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	sessionID := "it-" + uuid.NewString()

	t.Run("Value mapping cache round trip", func(t *testing.T) {
		cache := resolutioncache.NewRepositoryCache(uowFactory)
		key := resolver.CacheKey{SessionID: sessionID, Label: "Company", Property: "name", RawValue: "bamboo hr"}

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, cache.Put(ctx, key, "BambooHR"))
		require.NoError(t, cache.Put(ctx, key, "BambooHR Inc."))

		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "BambooHR Inc.", got)

		count, err := uowFactory.NewUnitOfWork(ctx).ValueMappingRepository().Count(ctx, specification.ByResolutionKey{
			SessionID: key.SessionID,
			Label:     key.Label,
			Property:  key.Property,
			RawValue:  key.RawValue,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Transactional conversation turns", func(t *testing.T) {
		requestID := uuid.New()
		turns := []*entity.ConversationTurn{
			{Id: uuid.New(), RequestId: requestID, SessionId: sessionID, UserId: "it-user", Sequence: 0, Stage: "user", Content: "Which companies use bamboo hr?"},
			{Id: uuid.New(), RequestId: requestID, SessionId: sessionID, UserId: "it-user", Sequence: 1, Stage: "answer", Content: "Two companies.",
				Metadata: map[string]interface{}{"final": true, "termination": "complete"}},
		}

		uow := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		if err := uow.ConversationTurnRepository().CreateBulk(ctx, turns); err != nil {
			uow.Rollback()
			t.Fatalf("CreateBulk failed: %v", err)
		}
		require.NoError(t, uow.Commit())

		repo := uowFactory.NewUnitOfWork(ctx).ConversationTurnRepository()
		dialog, err := repo.FindAll(ctx, specification.BySessionID{SessionID: sessionID}, specification.DialogTurns{})
		require.NoError(t, err)
		assert.Len(t, dialog, 2)

		foreign, err := repo.Count(ctx, specification.BySessionID{SessionID: sessionID}, specification.NotUserID{UserID: "it-user"})
		require.NoError(t, err)
		assert.Zero(t, foreign)
	})

	t.Run("Purge keeps fresh mappings", func(t *testing.T) {
		n, err := resolutioncache.NewRepositoryCache(uowFactory).Purge(ctx, time.Hour)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(0))

		count, err := uowFactory.NewUnitOfWork(ctx).ValueMappingRepository().Count(ctx, specification.BySessionID{SessionID: sessionID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
