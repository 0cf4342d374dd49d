package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/advisor/internal/model"
	"github.com/xxxsen/advisor/internal/pkg/errs"
	"github.com/xxxsen/advisor/internal/pkg/timeutil"
	"github.com/xxxsen/advisor/internal/repo"
	"github.com/xxxsen/advisor/internal/testutil"
)

func testConversation(tenantID string) *model.Conversation {
	now := timeutil.NowUnix()
	return &model.Conversation{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		ClientID: "client-1",
		UserID:   "advisor-1",
		Title:    "quarterly filing questions",
		Ctime:    now,
		Mtime:    now,
	}
}

func TestConversationRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	tenant := uuid.NewString()
	conv := testConversation(tenant)
	require.NoError(t, convs.Create(context.Background(), conv))

	got, err := convs.Get(context.Background(), tenant, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.Title, got.Title)

	_, err = convs.Get(context.Background(), uuid.NewString(), conv.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	newMtime := conv.Mtime + 100
	require.NoError(t, convs.Touch(context.Background(), tenant, conv.ID, newMtime))
	got, err = convs.Get(context.Background(), tenant, conv.ID)
	require.NoError(t, err)
	require.Equal(t, newMtime, got.Mtime)

	listed, err := convs.List(context.Background(), tenant, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestConversationRepoDeleteIdleBefore(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	convs := repo.NewConversationRepo(db)
	tenant := uuid.NewString()

	stale := testConversation(tenant)
	stale.Mtime = timeutil.NowUnix() - 10000
	require.NoError(t, convs.Create(context.Background(), stale))

	fresh := testConversation(tenant)
	require.NoError(t, convs.Create(context.Background(), fresh))

	deleted, err := convs.DeleteIdleBefore(context.Background(), timeutil.NowUnix()-5000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, deleted, int64(1))

	_, err = convs.Get(context.Background(), tenant, stale.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = convs.Get(context.Background(), tenant, fresh.ID)
	require.NoError(t, err)
}
