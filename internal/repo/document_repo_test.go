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

func testDocument(tenantID string) *model.Document {
	return &model.Document{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ClientID:    "client-1",
		Title:       "10-K 2025",
		SourceType:  model.SourceTypeFiling,
		SHA256:      uuid.NewString(),
		CompanyName: "Acme Corp",
		FilingType:  "10-K",
		Ctime:       timeutil.NowUnix(),
	}
}

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	tenant := uuid.NewString()
	doc := testDocument(tenant)
	require.NoError(t, docs.Create(context.Background(), doc))

	fetched, err := docs.GetByID(context.Background(), tenant, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "10-K 2025", fetched.Title)
	require.Equal(t, "Acme Corp", fetched.CompanyName)

	// another tenant cannot see the row
	_, err = docs.GetByID(context.Background(), uuid.NewString(), doc.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	bySHA, err := docs.GetBySHA256(context.Background(), tenant, doc.SHA256)
	require.NoError(t, err)
	require.Equal(t, doc.ID, bySHA.ID)

	listed, err := docs.List(context.Background(), tenant, "", 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, docs.Delete(context.Background(), tenant, doc.ID))
	_, err = docs.GetByID(context.Background(), tenant, doc.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDocumentRepoDuplicateSHAConflict(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	tenant := uuid.NewString()
	doc := testDocument(tenant)
	require.NoError(t, docs.Create(context.Background(), doc))

	dup := testDocument(tenant)
	dup.SHA256 = doc.SHA256
	require.ErrorIs(t, docs.Create(context.Background(), dup), errs.ErrConflict)

	// same sha under a different tenant is fine
	other := testDocument(uuid.NewString())
	other.SHA256 = doc.SHA256
	require.NoError(t, docs.Create(context.Background(), other))
}

func TestDocumentRepoScopeRequired(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	_, err := docs.GetByID(context.Background(), "", "x")
	require.ErrorIs(t, err, errs.ErrScopeViolation)
	_, err = docs.List(context.Background(), "", "", 0)
	require.ErrorIs(t, err, errs.ErrScopeViolation)
	require.ErrorIs(t, docs.Delete(context.Background(), "", "x"), errs.ErrScopeViolation)
}
