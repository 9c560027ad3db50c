package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.Put(ctx, "doc1", []byte(`{"name":"Bob","age":30}`))
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.Key)
	assert.Equal(t, int64(1), doc.Sequence)

	got, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, doc.Key, got.Key)
	assert.Equal(t, doc.Sequence, got.Sequence)
	assert.JSONEq(t, `{"name":"Bob","age":30}`, string(got.Body))
}

func TestPut_GeneratesKey(t *testing.T) {
	s := openTestStore(t)

	doc, err := s.Put(context.Background(), "", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Key)

	_, err = s.Get(context.Background(), doc.Key)
	assert.NoError(t, err)
}

func TestPut_RejectsInvalidJSON(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Put(context.Background(), "bad", []byte(`{"a":`))
	assert.Error(t, err)
}

func TestPut_ReplaceAdvancesSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Put(ctx, "doc1", []byte(`{"v":1}`))
	require.NoError(t, err)
	second, err := s.Put(ctx, "doc1", []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Greater(t, second.Sequence, first.Sequence)

	got, err := s.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Body))
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "doc1", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "doc1"))

	_, err = s.Get(ctx, "doc1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "doc1"), ErrNotFound)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.Put(context.Background(), "doc1", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.Get(context.Background(), "doc1")
	assert.NoError(t, err)
}
