package index

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tessellate-io/lectern/internal/db"
	"github.com/tessellate-io/lectern/internal/domain"
)

type fakeStore struct {
	hashes     map[string]map[string]string
	kv         map[string][]byte
	created    []*db.IndexDefinition
	dropped    []string
	searchRes  *db.SearchResult
	searchErr  error
	lastSearch *db.KNNQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: make(map[string]map[string]string),
		kv:     make(map[string][]byte),
	}
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	for _, item := range items {
		f.hashes[item.Key] = item.Fields
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.kv[key] = value
	return nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeStore) DelMulti(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.kv, k)
	}
	return nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.created = append(f.created, def)
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.lastSearch = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchRes, nil
}

func (f *fakeStore) SearchCount(_ context.Context, _ string) (int, error) {
	return len(f.hashes), nil
}

func testRepo(store *fakeStore) *Repository {
	return New(store, Options{KeyPrefix: "lectern:", Dim: 4, HNSWM: 32, EFConstruct: 400})
}

func TestRepository_WriteEntries_KeyLayout(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	entries := []domain.IndexEntry{
		{Fingerprint: "abc", Window: 0, Text: "t0", Vector: []float32{1, 0, 0, 0}},
		{Fingerprint: "abc", Window: 1, Text: "t1", Vector: []float32{0, 1, 0, 0}},
	}
	if err := repo.WriteEntries(context.Background(), "42", entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"lectern:vec:42:abc:0", "lectern:vec:42:abc:1"} {
		fields, ok := store.hashes[key]
		if !ok {
			t.Fatalf("missing key %s", key)
		}
		if fields[fieldFingerprint] != "abc" {
			t.Errorf("key %s fingerprint: got %q", key, fields[fieldFingerprint])
		}
	}
	if store.hashes["lectern:vec:42:abc:0"][fieldContent] != "t0" {
		t.Errorf("window 0 content mismatch")
	}
}

func TestRepository_CreateGeneration(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	if err := repo.CreateGeneration(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 index, got %d", len(store.created))
	}

	def := store.created[0]
	if def.Name != "lectern:index:42" {
		t.Errorf("index name: got %q", def.Name)
	}
	if len(def.Prefixes) != 1 || def.Prefixes[0] != "lectern:vec:42:" {
		t.Errorf("prefixes: got %v", def.Prefixes)
	}
}

func TestRepository_PublishAndSwap(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	prev, err := repo.Publish(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev != "" {
		t.Errorf("expected no previous generation, got %q", prev)
	}

	prev, err = repo.Publish(context.Background(), "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev != "1" {
		t.Errorf("expected previous generation 1, got %q", prev)
	}

	if got := string(store.kv["lectern:index:current"]); got != "2" {
		t.Errorf("pointer: got %q", got)
	}
}

func TestRepository_Search_Unpublished(t *testing.T) {
	repo := testRepo(newFakeStore())

	_, err := repo.Search(context.Background(), []float32{1, 0, 0, 0}, 6)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRepository_Search_ReconstructsChunks(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	meta, _ := json.Marshal(map[string]string{domain.MetaSource: "https://s/1"})
	store.searchRes = &db.SearchResult{
		Total: 1,
		Entries: []db.SearchEntry{{
			Key:   "lectern:vec:9:fp:0",
			Score: 0.87,
			Fields: map[string]string{
				fieldContent:     "chunk text",
				fieldMetadata:    string(meta),
				fieldFingerprint: "fp",
			},
		}},
	}
	if _, err := repo.Publish(context.Background(), "9"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	results, err := repo.Search(context.Background(), []float32{1, 0, 0, 0}, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.Score != 0.87 {
		t.Errorf("score: got %g", got.Score)
	}
	if got.Chunk.Text() != "chunk text" || got.Chunk.Source() != "https://s/1" {
		t.Errorf("chunk mismatch: text=%q source=%q", got.Chunk.Text(), got.Chunk.Source())
	}

	if store.lastSearch.IndexName != "lectern:index:9" {
		t.Errorf("searched index: got %q", store.lastSearch.IndexName)
	}
	if store.lastSearch.K != 6 {
		t.Errorf("k: got %d", store.lastSearch.K)
	}
}

func TestRepository_Search_MissingIndex(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	store.searchErr = db.ErrIndexNotFound
	if _, err := repo.Publish(context.Background(), "9"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_, err := repo.Search(context.Background(), []float32{1, 0, 0, 0}, 6)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRepository_Size(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	entries := []domain.IndexEntry{
		{Fingerprint: "fp", Window: 0, Text: "t0", Vector: []float32{1, 0, 0, 0}},
		{Fingerprint: "fp", Window: 1, Text: "t1", Vector: []float32{0, 1, 0, 0}},
	}
	if err := repo.WriteEntries(context.Background(), "3", entries); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := repo.Publish(context.Background(), "3"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	n, err := repo.Size(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("size: got %d, want 2", n)
	}
}

func TestRepository_Size_Unpublished(t *testing.T) {
	repo := testRepo(newFakeStore())

	_, err := repo.Size(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRepository_DropGeneration(t *testing.T) {
	store := newFakeStore()
	repo := testRepo(store)

	entries := []domain.IndexEntry{{Fingerprint: "fp", Text: "t", Vector: []float32{1, 0, 0, 0}}}
	if err := repo.WriteEntries(context.Background(), "1", entries); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := repo.WriteEntries(context.Background(), "2", entries); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := repo.DropGeneration(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.hashes["lectern:vec:1:fp:0"]; ok {
		t.Error("generation 1 entries still present")
	}
	if _, ok := store.hashes["lectern:vec:2:fp:0"]; !ok {
		t.Error("generation 2 entries removed")
	}
	if len(store.dropped) != 1 || store.dropped[0] != "lectern:index:1" {
		t.Errorf("dropped indexes: %v", store.dropped)
	}
}

func TestRepository_DropGeneration_Empty(t *testing.T) {
	repo := testRepo(newFakeStore())
	if err := repo.DropGeneration(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
