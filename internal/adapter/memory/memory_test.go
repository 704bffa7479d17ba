package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighttrack/internal/domain"
)

func notes(s string) *string { return &s }

func TestEntryRepositoryUpsert(t *testing.T) {
	db := New()
	ctx := context.Background()
	userID := int64(1)
	created := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	e, isNew, err := db.Upsert(ctx, userID, domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70}, created)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !isNew {
		t.Error("expected first upsert to create")
	}
	if e.ID == 0 {
		t.Error("expected non-zero ID")
	}

	e2, isNew, err := db.Upsert(ctx, userID, domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 71.5, Notes: notes("later")}, created.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, e.ID, e2.ID)
	assert.Equal(t, 71.5, e2.WeightKg)
	assert.Equal(t, "later", *e2.Notes)
	assert.Equal(t, created, e2.CreatedAt, "created_at must survive an update")

	all, err := db.ListAll(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntryRepositoryOwnership(t *testing.T) {
	db := New()
	ctx := context.Background()

	e, _, err := db.Upsert(ctx, 1, domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70}, time.Now())
	require.NoError(t, err)

	// Other user sees nothing
	got, err := db.GetByID(ctx, 2, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := db.DeleteByID(ctx, 2, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ = db.GetByID(ctx, 1, e.ID)
	require.NotNil(t, got)

	ok, _ = db.DeleteByID(ctx, 1, e.ID)
	assert.True(t, ok)
	ok, _ = db.DeleteByID(ctx, 1, e.ID)
	assert.False(t, ok, "second delete reports not found")

	// The date is free again.
	_, isNew, _ := db.Upsert(ctx, 1, domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70}, time.Now())
	assert.True(t, isNew)
}

func TestEntryRepositoryList(t *testing.T) {
	db := New()
	ctx := context.Background()
	for _, d := range []string{"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04", "2026-01-05"} {
		_, _, err := db.Upsert(ctx, 1, domain.EntryInput{EntryDate: d, WeightKg: 70}, time.Now())
		require.NoError(t, err)
	}
	_, _, _ = db.Upsert(ctx, 2, domain.EntryInput{EntryDate: "2026-01-03", WeightKg: 90}, time.Now())

	rows, total, err := db.List(ctx, 1, domain.ListFilter{Sort: domain.SortDesc, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-01-05", rows[0].EntryDate)
	assert.Equal(t, "2026-01-04", rows[1].EntryDate)

	rows, total, _ = db.List(ctx, 1, domain.ListFilter{
		DateRange: domain.DateRange{From: "2026-01-02", To: "2026-01-04"},
		Sort:      domain.SortAsc, Page: 1, Limit: 10,
	})
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, "2026-01-02", rows[0].EntryDate)
	assert.Equal(t, "2026-01-04", rows[2].EntryDate)

	rows, total, _ = db.List(ctx, 1, domain.ListFilter{Sort: domain.SortAsc, Page: 9, Limit: 10})
	assert.Equal(t, 5, total)
	assert.Empty(t, rows)
}

func TestEntryRepositoryStats(t *testing.T) {
	db := New()
	ctx := context.Background()
	for _, in := range []domain.EntryInput{
		{EntryDate: "2026-01-01", WeightKg: 70},
		{EntryDate: "2026-01-15", WeightKg: 75},
		{EntryDate: "2026-02-01", WeightKg: 72},
		{EntryDate: "2026-02-02", WeightKg: 70},
	} {
		_, _, err := db.Upsert(ctx, 1, in, time.Now())
		require.NoError(t, err)
	}

	count, avg, err := db.Summary(ctx, 1, domain.DateRange{To: "2026-02-01"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NotNil(t, avg)
	assert.InDelta(t, 72.333, *avg, 0.001)

	count, avg, _ = db.Summary(ctx, 1, domain.DateRange{From: "2027-01-01"})
	assert.Zero(t, count)
	assert.Nil(t, avg)

	lightest, _ := db.FirstBy(ctx, 1, domain.DateRange{}, domain.OrderLightest)
	assert.Equal(t, &domain.WeightPoint{WeightKg: 70, EntryDate: "2026-01-01"}, lightest)
	heaviest, _ := db.FirstBy(ctx, 1, domain.DateRange{}, domain.OrderHeaviest)
	assert.Equal(t, "2026-01-15", heaviest.EntryDate)
	latest, _ := db.FirstBy(ctx, 1, domain.DateRange{}, domain.OrderLatest)
	assert.Equal(t, "2026-02-02", latest.EntryDate)
	earliest, _ := db.FirstBy(ctx, 1, domain.DateRange{}, domain.OrderEarliest)
	assert.Equal(t, "2026-01-01", earliest.EntryDate)

	none, err := db.FirstBy(ctx, 99, domain.DateRange{}, domain.OrderLatest)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBackup(t *testing.T) {
	db := New()
	ctx := context.Background()
	_, _, _ = db.Upsert(ctx, 2, domain.EntryInput{EntryDate: "2026-01-02", WeightKg: 80.5, Notes: notes("a,b")}, time.Now())
	_, _, _ = db.Upsert(ctx, 1, domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, db.Backup(ctx, &buf))
	assert.Regexp(t, `^weighttrack-backup-\d{8}-\d{6}\.csv$`, db.BackupFilename())
	assert.Equal(t, "user_id,date,weight,notes\n1,2026-01-01,70,\n2,2026-01-02,80.5,\"a,b\"\n", buf.String())
}

func TestUserRepository(t *testing.T) {
	db := New()
	repo := db.NewUserRepo()
	ctx := context.Background()

	u, err := repo.Create(ctx, "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "bob@example.com" {
		t.Errorf("expected bob@example.com, got %s", u.Email)
	}

	u2, err := repo.GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u2 == nil || u2.ID != u.ID {
		t.Error("failed to retrieve user")
	}

	_, err = repo.Create(ctx, "bob@example.com", "other")
	if !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash"))
	u3, _ := repo.GetByID(ctx, u.ID)
	assert.Equal(t, "new-hash", u3.PasswordHash)

	assert.Error(t, repo.UpdatePassword(ctx, 404, "x"))
}

func TestSessionRepository(t *testing.T) {
	db := New()
	repo := db.NewSessionRepo()
	ctx := context.Background()

	err := repo.Create(ctx, 1, "token123", "ua", "127.0.0.1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess, err := repo.GetByToken(ctx, "token123")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	assert.Equal(t, "ua", sess.UserAgent)

	_ = repo.Delete(ctx, "token123")
	sess, _ = repo.GetByToken(ctx, "token123")
	if sess != nil {
		t.Error("expected nil (deleted)")
	}

	_ = repo.Create(ctx, 1, "a", "", "", time.Now().Add(time.Hour))
	_ = repo.Create(ctx, 1, "b", "", "", time.Now().Add(time.Hour))
	_ = repo.Create(ctx, 2, "c", "", "", time.Now().Add(time.Hour))
	_ = repo.Create(ctx, 2, "old", "", "", time.Now().Add(-time.Hour))

	require.NoError(t, repo.DeleteForUser(ctx, 1))
	require.NoError(t, repo.DeleteExpired(ctx))

	for _, tok := range []string{"a", "b", "old"} {
		s, _ := repo.GetByToken(ctx, tok)
		assert.Nil(t, s, tok)
	}
	s, _ := repo.GetByToken(ctx, "c")
	assert.NotNil(t, s)
}
