package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/models"
)

func TestOperatorRepository_CreateAndFind(t *testing.T) {
	db := TestDB(t)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	op := &models.Operator{
		Username: "admin",
		Password: "$argon2id$hash",
		Role:     "admin",
	}
	require.NoError(t, repo.Create(ctx, op))
	assert.NotZero(t, op.ID)

	found, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", found.Role)
	assert.Nil(t, found.LastLoginAt)

	_, err = repo.FindByUsername(ctx, "ghost")
	assert.Error(t, err)
}

func TestOperatorRepository_UpdateLastLogin(t *testing.T) {
	db := TestDB(t)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	op := &models.Operator{Username: "op1", Password: "x"}
	require.NoError(t, repo.Create(ctx, op))
	require.NoError(t, repo.UpdateLastLogin(ctx, op.ID))

	found, err := repo.FindByUsername(ctx, "op1")
	require.NoError(t, err)
	assert.NotNil(t, found.LastLoginAt)
}
