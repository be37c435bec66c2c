package verifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/schema/schematest"
	"github.com/dbsmedya/gofixture/internal/sqlutil"
	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/types"
)

// ============================================================================
// Test Helpers
// ============================================================================

func createTestStore() *store.MemoryStore {
	return store.NewMemoryStore(schematest.MusicRegistry()).
		MustAdd(schematest.Artist, "id", int64(1), "first_name", "Miles", "last_name", "Davis", "instrument", "trumpet").
		MustAdd(schematest.RecordLabel, "id", int64(1), "name", "Columbia").
		MustAdd(schematest.Album, "id", int64(1), "name", "Kind of Blue", "release_date", "1959-08-17", "artist", int64(1), "record_label", int64(1))
}

// createTestDocument mirrors createTestStore as a decoded document, with a
// duplicated album as multiple walk paths produce it.
func createTestDocument() []fixture.Entry {
	album := fixture.Entry{Model: schematest.Album, Fields: types.RecordFromPairs(
		"id", int64(1), "name", "Kind of Blue", "release_date", "1959-08-17", "artist", int64(1), "record_label", int64(1))}
	return []fixture.Entry{
		{Model: schematest.RecordLabel, Fields: types.RecordFromPairs("id", int64(1), "name", "Columbia")},
		album,
		{Model: schematest.Artist, Fields: types.RecordFromPairs(
			"id", int64(1), "first_name", "Miles", "last_name", "Davis", "instrument", "trumpet")},
		album,
	}
}

func newTestVerifier(t *testing.T, s store.Store, method VerificationMethod) *Verifier {
	t.Helper()
	v, err := NewVerifier(s, schematest.MusicRegistry(), method, logger.NewNop())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return v
}

// ============================================================================
// NewVerifier Tests
// ============================================================================

func TestNewVerifier_Validation(t *testing.T) {
	reg := schematest.MusicRegistry()
	s := createTestStore()

	if _, err := NewVerifier(nil, reg, MethodCount, nil); err == nil {
		t.Error("Expected error for nil destination store")
	}
	if _, err := NewVerifier(s, nil, MethodCount, nil); err == nil {
		t.Error("Expected error for nil registry")
	}
	if _, err := NewVerifier(s, reg, "md5", nil); err == nil {
		t.Error("Expected error for unsupported method")
	}
}

func TestNewVerifier_Defaults(t *testing.T) {
	v, err := NewVerifier(createTestStore(), schematest.MusicRegistry(), "", nil)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if v.Method() != MethodCount {
		t.Errorf("Expected default method %s, got %s", MethodCount, v.Method())
	}
	if v.logger == nil {
		t.Error("Expected default logger to be set")
	}
}

// ============================================================================
// Verify Tests
// ============================================================================

func TestVerify_Count_Success(t *testing.T) {
	v := newTestVerifier(t, createTestStore(), MethodCount)

	stats, err := v.Verify(context.Background(), createTestDocument())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if stats.ModelsVerified != 3 || stats.ModelsPassed != 3 {
		t.Errorf("Expected 3 models verified and passed, got %d/%d", stats.ModelsVerified, stats.ModelsPassed)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("Expected 3 records, got %d", stats.TotalRecords)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", stats.Duplicates)
	}

	// Parents are verified before the album
	if got := stats.Results[len(stats.Results)-1].Model; got != "testapp.album" {
		t.Errorf("Expected album last, got %s", got)
	}
}

func TestVerify_Count_Mismatch(t *testing.T) {
	doc := append(createTestDocument(), fixture.Entry{
		Model:  schematest.Artist,
		Fields: types.RecordFromPairs("id", int64(2), "first_name", "Bill", "last_name", "Evans", "instrument", "piano"),
	})
	v := newTestVerifier(t, createTestStore(), MethodCount)

	stats, err := v.Verify(context.Background(), doc)
	if err == nil {
		t.Fatal("Expected mismatch error")
	}
	if !strings.Contains(err.Error(), "testapp.artist") {
		t.Errorf("Expected model in error, got %v", err)
	}
	if stats.ModelsFailed != 1 {
		t.Errorf("Expected 1 failed model, got %d", stats.ModelsFailed)
	}
}

func TestVerify_SHA256_Success(t *testing.T) {
	v := newTestVerifier(t, createTestStore(), MethodSHA256)

	stats, err := v.Verify(context.Background(), createTestDocument())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	for _, r := range stats.Results {
		if r.SourceHash == "" || r.SourceHash != r.DestHash {
			t.Errorf("Expected matching hashes for %s, got %q and %q", r.Model, r.SourceHash, r.DestHash)
		}
	}
}

func TestVerify_SHA256_Mismatch(t *testing.T) {
	doc := createTestDocument()
	doc[0] = fixture.Entry{Model: schematest.RecordLabel, Fields: types.RecordFromPairs("id", int64(1), "name", "Columbia Records")}
	v := newTestVerifier(t, createTestStore(), MethodSHA256)

	_, err := v.Verify(context.Background(), doc)
	if err == nil {
		t.Fatal("Expected hash mismatch")
	}
	if !strings.Contains(err.Error(), "hash mismatch") {
		t.Errorf("Expected hash mismatch message, got %v", err)
	}

	// The count method does not see changed values
	v = newTestVerifier(t, createTestStore(), MethodCount)
	if _, err := v.Verify(context.Background(), doc); err != nil {
		t.Errorf("Expected count verification to pass, got %v", err)
	}
}

func TestVerify_Skip(t *testing.T) {
	v := newTestVerifier(t, createTestStore(), MethodSkip)

	stats, err := v.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if stats.Method != MethodSkip || stats.ModelsVerified != 0 {
		t.Errorf("Expected skipped verification, got %+v", stats)
	}
}

func TestVerify_EmptyDocument(t *testing.T) {
	v := newTestVerifier(t, createTestStore(), MethodSHA256)

	stats, err := v.Verify(context.Background(), []fixture.Entry{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if stats.ModelsVerified != 0 {
		t.Errorf("Expected nothing verified, got %d", stats.ModelsVerified)
	}
}

func TestVerify_UnknownModel(t *testing.T) {
	doc := []fixture.Entry{{Model: schema.NewLogicalType("other", "thing"), Fields: types.RecordFromPairs("id", 1)}}
	v := newTestVerifier(t, createTestStore(), MethodCount)

	_, err := v.Verify(context.Background(), doc)
	if !errors.Is(err, schema.ErrUnknownType) {
		t.Errorf("Expected unknown type error, got %v", err)
	}
}

func TestVerify_EntryWithoutKey(t *testing.T) {
	doc := []fixture.Entry{{Model: schematest.Artist, Fields: types.RecordFromPairs("first_name", "x")}}
	v := newTestVerifier(t, createTestStore(), MethodCount)

	if _, err := v.Verify(context.Background(), doc); err == nil {
		t.Error("Expected error for entry without primary key")
	}
}

func TestVerify_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	reg := schematest.MusicRegistry()
	s, err := store.NewSQLStore(db, sqlutil.MySQL, reg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSQLStore failed: %v", err)
	}
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection lost"))

	v := newTestVerifier(t, s, MethodCount)
	_, err = v.Verify(context.Background(), createTestDocument())
	if err == nil || !strings.Contains(err.Error(), "connection lost") {
		t.Errorf("Expected query error, got %v", err)
	}
}

func TestVerify_ContextCancellation(t *testing.T) {
	v := newTestVerifier(t, createTestStore(), MethodCount)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Verify(ctx, createTestDocument())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDigest_OrderIndependent(t *testing.T) {
	doc := createTestDocument()[:3]
	a, err := digest(doc)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	b, err := digest([]fixture.Entry{doc[2], doc[0], doc[1]})
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if a != b {
		t.Errorf("Expected equal digests, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected hex sha256, got %q", a)
	}
}
