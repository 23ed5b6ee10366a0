package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Sessions ---

func TestSQLite_SessionLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := &model.Session{OAuthState: "state-1"}
	require.NoError(t, st.SaveSession(ctx, sess))
	require.NotEmpty(t, sess.ID)
	created := sess.CreatedAt

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "state-1", got.OAuthState)
	assert.False(t, got.Connected())
	assert.True(t, got.Expiry.IsZero())

	sess.OAuthState = ""
	sess.RealmID = "realm-9"
	sess.AccessToken = "access"
	sess.RefreshToken = "refresh"
	sess.TokenType = "Bearer"
	sess.Expiry = time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err = st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Connected())
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, sess.Expiry.Equal(got.Expiry))
	assert.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, st.DeleteSession(ctx, sess.ID))
	_, err = st.GetSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_GetSession_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_DeleteSession_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.DeleteSession(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Proof runs ---

func TestSQLite_ProofRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	runs := []*model.ProofRun{
		{SessionID: "a", Mode: model.ModeManual, Backend: "nargo", Proof: "110000", Overall: model.OutcomeFail,
			Status: model.RunStatusComplete, DurationMs: 1200, CreatedAt: base},
		{SessionID: "b", Mode: model.ModeConnected, Backend: "nargo", Proof: "111111", Overall: model.OutcomePass,
			Status: model.RunStatusComplete, DurationMs: 900, CreatedAt: base.Add(time.Minute)},
		{SessionID: "b", Mode: model.ModeConnected, Backend: "nargo", Status: model.RunStatusFailed,
			ErrorKind: "timeout", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, st.CreateProofRun(ctx, r))
		assert.NotEmpty(t, r.ID)
	}

	all, err := st.ListProofRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID, "newest first")
	assert.Equal(t, model.OutcomeUnknown, all[0].Overall)
	assert.Equal(t, "timeout", all[0].ErrorKind)
	assert.Equal(t, model.OutcomeFail, all[2].Overall)
	assert.Equal(t, "110000", all[2].Proof)
	assert.Equal(t, int64(1200), all[2].DurationMs)

	bySession, err := st.ListProofRuns(ctx, RunFilter{SessionID: "b", Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, model.OutcomePass, bySession[0].Overall)

	manual, err := st.ListProofRuns(ctx, RunFilter{Mode: model.ModeManual})
	require.NoError(t, err)
	assert.Len(t, manual, 1)

	limited, err := st.ListProofRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_ListProofRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	runs, err := st.ListProofRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}

func TestRunFilter_Limit(t *testing.T) {
	assert.Equal(t, DefaultRunLimit, RunFilter{}.limit())
	assert.Equal(t, 5, RunFilter{Limit: 5}.limit())
}
