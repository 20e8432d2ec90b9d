package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"protectbox/internal/model"
	"protectbox/internal/store"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}
	logger := zap.NewNop()
	require.NoError(t, Migrate(databaseURL, logger))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := NewPool(ctx, databaseURL, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestQueries_RequestVersioning(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	r := &model.ProtectionRequest{
		ID:        ulid.Make().String(),
		NUNC:      "110016000000202500001",
		Status:    model.RequestStatusCreated,
		IsActive:  true,
		Applicant: model.Identity{PersonName: model.PersonName{FirstName: "Ana", FirstSurname: "Díaz"}, DocumentType: "CC", DocumentNumber: ulid.Make().String()},
	}
	require.NoError(t, pool.CreateRequest(ctx, r))

	stale, err := pool.GetRequest(ctx, r.ID)
	require.NoError(t, err)

	r.Status = model.RequestStatusFiled
	r.Radicado = "RAD-2025-" + r.ID[:6]
	require.NoError(t, pool.UpdateRequest(ctx, r))
	assert.Equal(t, int64(2), r.Version)

	stale.IsActive = false
	err = pool.UpdateRequest(ctx, stale)
	assert.True(t, errors.Is(err, store.ErrVersionConflict))

	got, err := pool.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusFiled, got.Status)

	active := true
	list, err := pool.ListRequests(ctx, store.RequestFilter{DocumentNumber: r.Applicant.DocumentNumber, Active: &active})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestQueries_Sequence(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	name := "test:" + ulid.Make().String()

	a, err := pool.NextSequence(ctx, name)
	require.NoError(t, err)
	b, err := pool.NextSequence(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
}

func TestQueries_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	_, err := pool.GetMission(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
