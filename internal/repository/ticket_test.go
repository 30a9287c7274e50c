package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/models"
)

func TestTicketRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	ticket := CreateTestTicket("TKT20250101001", "AB1234", models.OriginServer)
	err := repo.Create(ctx, ticket)
	require.NoError(t, err)
	assert.NotZero(t, ticket.ID)

	// 票号唯一约束
	dup := CreateTestTicket("TKT20250101001", "CD5678", models.OriginServer)
	err = repo.Create(ctx, dup)
	assert.Error(t, err)
}

func TestTicketRepository_FindByTicketID(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, CreateTestTicket("OFF000001", "XY9876", models.OriginOffline)))

	found, err := repo.FindByTicketID(ctx, "OFF000001")
	require.NoError(t, err)
	assert.Equal(t, "XY9876", found.Plate)
	assert.Equal(t, models.OriginOffline, found.Origin)
	assert.False(t, found.Synced)

	_, err = repo.FindByTicketID(ctx, "missing")
	assert.Error(t, err)
}

func TestTicketRepository_MarkSynced(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, CreateTestTicket("OFF000002", "AA1111", models.OriginOffline)))

	err := repo.MarkSynced(ctx, "OFF000002")
	require.NoError(t, err)

	found, err := repo.FindByTicketID(ctx, "OFF000002")
	require.NoError(t, err)
	assert.True(t, found.Synced)
}

func TestTicketRepository_MarkPrinted(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, CreateTestTicket("TKT001", "BB2222", models.OriginServer)))
	require.NoError(t, repo.MarkPrinted(ctx, "TKT001"))

	found, err := repo.FindByTicketID(ctx, "TKT001")
	require.NoError(t, err)
	assert.True(t, found.Printed)
}

func TestTicketRepository_CountUnsynced(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	// 服务端票不计入未同步
	require.NoError(t, repo.Create(ctx, CreateTestTicket("TKT100", "CC0001", models.OriginServer)))
	require.NoError(t, repo.Create(ctx, CreateTestTicket("OFF000010", "CC0002", models.OriginOffline)))
	require.NoError(t, repo.Create(ctx, CreateTestTicket("OFF000011", "CC0003", models.OriginOffline)))

	count, err := repo.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.MarkSynced(ctx, "OFF000010"))
	count, err = repo.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTicketRepository_Query(t *testing.T) {
	db := TestDB(t)
	repo := NewTicketRepository(db)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"TKT201", "TKT202", "OFF000020"} {
		ticket := CreateTestTicket(id, "DD000"+id[len(id)-1:], models.OriginServer)
		if id == "OFF000020" {
			ticket.Origin = models.OriginOffline
		}
		ticket.IssuedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, ticket))
	}

	// 按来源过滤
	tickets, total, err := repo.Query(ctx, &TicketQuery{Origin: models.OriginOffline})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tickets, 1)
	assert.Equal(t, "OFF000020", tickets[0].TicketID)

	// 不带条件返回全部，按签发时间倒序
	tickets, total, err = repo.Query(ctx, &TicketQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, tickets, 3)
	assert.Equal(t, "OFF000020", tickets[0].TicketID)

	// 按同步状态过滤
	synced := false
	_, total, err = repo.Query(ctx, &TicketQuery{Synced: &synced})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 200, p.Offset())
}
