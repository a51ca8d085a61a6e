package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRecord matches the entries schema: id is the key, spent_on and
// updated_on are indexed, everything else lands in the payload.
type testRecord struct {
	ID        int64   `json:"id"`
	SpentOn   string  `json:"spent_on,omitempty"`
	UpdatedOn string  `json:"updated_on,omitempty"`
	Comment   string  `json:"comment,omitempty"`
	Hours     float64 `json:"hours,omitempty"`
}

type testTask struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at,omitempty"`
	ClosedAt  string `json:"closed_at,omitempty"`
	Text      string `json:"text,omitempty"`
}

func newEntryCollection(t *testing.T) (*Store, *Collection[testRecord]) {
	t.Helper()
	s := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), 9)
	t.Cleanup(func() { s.Close() })
	return s, NewCollection[testRecord](s, Entries)
}

func TestRoundTrip(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	want := testRecord{ID: 42, SpentOn: "2026-08-15", UpdatedOn: "2026-08-15T09:00:00Z", Comment: "code review", Hours: 1.25}
	require.NoError(t, col.Put(ctx, want))

	got, err := col.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = col.Get(ctx, 43)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOnlyIndexedFieldsStayPlaintext(t *testing.T) {
	s, col := newEntryCollection(t)
	ctx := context.Background()

	rec := testRecord{ID: 1, SpentOn: "2026-08-15", UpdatedOn: "2026-08-15T09:00:00Z", Comment: "secret customer name", Hours: 8}
	require.NoError(t, col.Put(ctx, rec))

	var id int64
	var spentOn, updatedOn string
	var payload []byte
	require.NoError(t, s.db.QueryRow(
		"SELECT id, spent_on, updated_on, payload FROM entries WHERE id = 1").
		Scan(&id, &spentOn, &updatedOn, &payload))

	assert.Equal(t, int64(1), id)
	assert.Equal(t, "2026-08-15", spentOn)
	assert.Equal(t, "2026-08-15T09:00:00Z", updatedOn)
	assert.NotContains(t, string(payload), "secret", "non-indexed fields must be sealed")
	assert.NotContains(t, string(payload), "comment")
}

func TestPatchLeavesUntouchedFieldsAlone(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.Put(ctx, testRecord{
		ID: 5, SpentOn: "2026-08-15", UpdatedOn: "2026-08-15T09:00:00Z", Comment: "original", Hours: 2}))

	// One indexed change, one payload change.
	require.NoError(t, col.Patch(ctx, 5, map[string]any{
		"spent_on": "2026-08-16",
		"hours":    3.5,
	}))

	got, err := col.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-16", got.SpentOn)
	assert.Equal(t, 3.5, got.Hours)
	assert.Equal(t, "original", got.Comment)
	assert.Equal(t, "2026-08-15T09:00:00Z", got.UpdatedOn)

	err = col.Patch(ctx, 5, map[string]any{"id": 6})
	assert.Error(t, err, "primary key is immutable")

	err = col.Patch(ctx, 404, map[string]any{"hours": 1.0})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.BulkPut(ctx, []testRecord{
		{ID: 1, SpentOn: "2026-08-10", Comment: "a"},
		{ID: 2, SpentOn: "2026-08-11", Comment: "b"},
		{ID: 3, SpentOn: "2026-08-12", Comment: "c"},
		{ID: 4, Comment: "no day"},
	}))

	got, err := col.List(ctx, WhereAtLeast("spent_on", "2026-08-11"), OrderBy("spent_on", true))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	got, err = col.List(ctx, WhereEq("spent_on", "2026-08-10"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Comment)

	got, err = col.List(ctx, WhereIn("id", int64(1), int64(4)), OrderBy("id", false))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)

	got, err = col.List(ctx, WhereNull("spent_on"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].ID)

	got, err = col.List(ctx, OrderBy("id", false), Limit(2))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = col.List(ctx, WhereEq("comment", "a"))
	assert.Error(t, err, "filtering on a sealed field is rejected")
}

func TestDeleteBelow(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.BulkPut(ctx, []testRecord{
		{ID: 1, SpentOn: "2026-07-01"},
		{ID: 2, SpentOn: "2026-08-01"},
		{ID: 3, SpentOn: "2026-08-20"},
	}))

	n, err := col.DeleteBelow(ctx, "spent_on", "2026-08-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReconcile(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.BulkPut(ctx, []testRecord{
		{ID: 1, SpentOn: "2026-08-01", Comment: "stays"},
		{ID: 2, SpentOn: "2026-08-02", Comment: "goes"},
	}))

	require.NoError(t, col.Reconcile(ctx, []testRecord{
		{ID: 1, SpentOn: "2026-08-01", Comment: "stays, updated"},
		{ID: 3, SpentOn: "2026-08-03", Comment: "new"},
	}))

	got, err := col.List(ctx, OrderBy("id", false))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "stays, updated", got[0].Comment)
	assert.Equal(t, int64(3), got[1].ID)

	// Empty fresh set clears everything.
	require.NoError(t, col.Reconcile(ctx, nil))
	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplaceAll(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.BulkPut(ctx, []testRecord{{ID: 1}, {ID: 2}}))
	require.NoError(t, col.ReplaceAll(ctx, []testRecord{{ID: 9, Comment: "only one"}}))

	got, err := col.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ID)
}

func TestMaxText(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	_, ok, err := col.MaxText(ctx, "updated_on")
	require.NoError(t, err)
	assert.False(t, ok, "empty collection has no maximum")

	require.NoError(t, col.BulkPut(ctx, []testRecord{
		{ID: 1, UpdatedOn: "2026-08-10T08:00:00Z"},
		{ID: 2, UpdatedOn: "2026-08-12T08:00:00Z"},
		{ID: 3},
	}))

	max, ok, err := col.MaxText(ctx, "updated_on")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-08-12T08:00:00Z", max)
}

func TestAutoKeyAssignsSequentialIDs(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), 9)
	defer s.Close()
	ctx := context.Background()
	tasks := NewCollection[testTask](s, Tasks)

	first, err := tasks.Insert(ctx, testTask{Text: "one", CreatedAt: "2026-08-01T00:00:00Z"})
	require.NoError(t, err)
	second, err := tasks.Insert(ctx, testTask{Text: "two", CreatedAt: "2026-08-02T00:00:00Z"})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, tasks.Delete(ctx, second))
	third, err := tasks.Insert(ctx, testTask{Text: "three", CreatedAt: "2026-08-03T00:00:00Z"})
	require.NoError(t, err)
	assert.Greater(t, third, second, "ids are never reused")
}

func TestDecryptFailureDegradesToIndexedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s := openTestStore(t, path, 1)
	col := NewCollection[testRecord](s, Entries)
	require.NoError(t, col.Put(ctx, testRecord{
		ID: 11, SpentOn: "2026-08-15", UpdatedOn: "2026-08-15T09:00:00Z", Comment: "unreadable later", Hours: 4}))
	require.NoError(t, s.Close())

	// Reopen under a different key: payloads fail authentication, the
	// indexed fields still come back.
	s2 := openTestStore(t, path, 2)
	defer s2.Close()

	got, err := NewCollection[testRecord](s2, Entries).Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, "2026-08-15", got.SpentOn)
	assert.Equal(t, "2026-08-15T09:00:00Z", got.UpdatedOn)
	assert.Empty(t, got.Comment)
	assert.Zero(t, got.Hours)
}

func TestBulkInsertIsAtomic(t *testing.T) {
	_, col := newEntryCollection(t)
	ctx := context.Background()

	require.NoError(t, col.Put(ctx, testRecord{ID: 2, Comment: "already here"}))

	// The second record collides, so nothing from the batch may land.
	err := col.BulkInsert(ctx, []testRecord{
		{ID: 1, Comment: "new"},
		{ID: 2, Comment: "duplicate"},
	})
	require.Error(t, err)

	count, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
