package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/linkmint/linkmint/internal/cache"
)

func newTestService(repo *memRepo, mc *memCache) LinkService {
	return NewLinkService(LinkServiceDeps{
		Repo:  repo,
		Cache: mc,
	})
}

func strptr(s string) *string { return &s }
func uintp(u uint) *uint      { return &u }

func TestLinkService_Shorten_GeneratedCode(t *testing.T) {
	repo := newMemRepo()
	mc := newMemCache()
	svc := newTestService(repo, mc)

	link, err := svc.Shorten(context.Background(), ShortenInput{
		OriginalURL: "https://example.com",
	})
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}

	if len(link.ShortCode) != 6 {
		t.Fatalf("expected generated 6-character code, got %q", link.ShortCode)
	}
	if link.CustomAlias != nil {
		t.Fatal("expected no custom alias on generated link")
	}

	// Write-through: the first redirect must not pay a cold store read.
	if url, ok := mc.Get(context.Background(), cache.LinkKey(link.ShortCode)); !ok || url != "https://example.com" {
		t.Fatalf("expected cached url after shorten, got %q (present=%v)", url, ok)
	}
}

func TestLinkService_Shorten_CustomAlias(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, newMemCache())

	link, err := svc.Shorten(context.Background(), ShortenInput{
		OriginalURL: "https://example.com",
		CustomAlias: strptr("t1"),
	})
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}
	if link.ShortCode != "t1" {
		t.Fatalf("expected alias to become the short code, got %q", link.ShortCode)
	}
	if link.CustomAlias == nil || *link.CustomAlias != "t1" {
		t.Fatal("expected custom alias to be stored")
	}
}

func TestLinkService_Shorten_AliasConflict(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, newMemCache())
	ctx := context.Background()

	first, err := svc.Shorten(ctx, ShortenInput{
		OriginalURL: "https://first.example.com",
		CustomAlias: strptr("dup"),
	})
	if err != nil {
		t.Fatalf("first Shorten returned error: %v", err)
	}

	_, err = svc.Shorten(ctx, ShortenInput{
		OriginalURL: "https://second.example.com",
		CustomAlias: strptr("dup"),
	})
	if !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}

	// The first link is untouched by the failed second attempt.
	got, err := repo.GetByCode(ctx, first.ShortCode)
	if err != nil {
		t.Fatalf("first link lost: %v", err)
	}
	if got.OriginalURL != "https://first.example.com" {
		t.Fatalf("first link mutated: %q", got.OriginalURL)
	}
}

// A generated candidate colliding with an existing code must be retried, not
// surfaced as an error.
func TestLinkService_Shorten_RetriesOnCollision(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	calls := 0
	gen := generatorFunc(func() string {
		calls++
		if calls == 1 {
			return "taken1"
		}
		return "fresh1"
	})

	svc := NewLinkService(LinkServiceDeps{Repo: repo, Cache: newMemCache(), Gen: gen})

	if _, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://a.example.com", CustomAlias: strptr("taken1")}); err != nil {
		t.Fatalf("seeding link failed: %v", err)
	}

	link, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://b.example.com"})
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}
	if link.ShortCode != "fresh1" {
		t.Fatalf("expected retry to land on fresh1, got %q", link.ShortCode)
	}
	if calls < 2 {
		t.Fatalf("expected at least 2 generator calls, got %d", calls)
	}
}

type generatorFunc func() string

func (f generatorFunc) Candidate() string { return f() }

func TestLinkService_Update_OwnershipAndCache(t *testing.T) {
	repo := newMemRepo()
	mc := newMemCache()
	svc := newTestService(repo, mc)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ShortenInput{
		OriginalURL: "https://old.example.com",
		CustomAlias: strptr("mine"),
		OwnerID:     uintp(7),
	})
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}

	// Wrong owner.
	if _, err := svc.Update(ctx, link.ShortCode, uintp(8), UpdatePatch{
		OriginalURL: strptr("https://evil.example.com"),
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Anonymous caller.
	if _, err := svc.Update(ctx, link.ShortCode, nil, UpdatePatch{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous caller, got %v", err)
	}

	// Stale stats snapshot must not survive the update.
	mc.Put(ctx, cache.StatsKey(link.ShortCode), `{"access_count":99}`, cache.SnapshotTTL)

	updated, err := svc.Update(ctx, link.ShortCode, uintp(7), UpdatePatch{
		OriginalURL: strptr("https://new.example.com"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.OriginalURL != "https://new.example.com" {
		t.Fatalf("expected updated url, got %q", updated.OriginalURL)
	}

	if url, ok := mc.Get(ctx, cache.LinkKey(link.ShortCode)); !ok || url != "https://new.example.com" {
		t.Fatalf("expected repopulated cache with new url, got %q (present=%v)", url, ok)
	}
	if _, ok := mc.Get(ctx, cache.StatsKey(link.ShortCode)); ok {
		t.Fatal("expected stats snapshot to be invalidated on update")
	}
}

func TestLinkService_Update_AliasConflict(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, newMemCache())
	ctx := context.Background()

	if _, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://a.example.com", CustomAlias: strptr("alias-a"), OwnerID: uintp(1)}); err != nil {
		t.Fatal(err)
	}
	linkB, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://b.example.com", CustomAlias: strptr("alias-b"), OwnerID: uintp(1)})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx, linkB.ShortCode, uintp(1), UpdatePatch{
		CustomAlias: strptr("alias-a"),
	}); !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}

	// Re-submitting a link's own alias is not a conflict.
	if _, err := svc.Update(ctx, linkB.ShortCode, uintp(1), UpdatePatch{
		CustomAlias: strptr("alias-b"),
	}); err != nil {
		t.Fatalf("self alias update failed: %v", err)
	}
}

func TestLinkService_Delete(t *testing.T) {
	repo := newMemRepo()
	mc := newMemCache()
	svc := newTestService(repo, mc)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ShortenInput{
		OriginalURL: "https://example.com",
		CustomAlias: strptr("gone1"),
		OwnerID:     uintp(3),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, link.ShortCode, uintp(4)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.Delete(ctx, link.ShortCode, uintp(3)); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := repo.GetByCode(ctx, link.ShortCode); !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected link gone from store, got %v", err)
	}
	if _, ok := mc.Get(ctx, cache.LinkKey(link.ShortCode)); ok {
		t.Fatal("expected link cache entry invalidated on delete")
	}

	if err := svc.Delete(ctx, "missing", uintp(3)); !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestLinkService_Stats(t *testing.T) {
	repo := newMemRepo()
	mc := newMemCache()
	svc := newTestService(repo, mc)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://example.com", CustomAlias: strptr("st1")})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Stats(ctx, link.ShortCode)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if snap.OriginalURL != "https://example.com" || snap.AccessCount != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// The snapshot is now cached: a counter bump in the store is not
	// visible until the snapshot TTL runs out.
	repo.applyAccess(accessEventFor(link.ID, time.Now()))

	cachedSnap, err := svc.Stats(ctx, link.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	if cachedSnap.AccessCount != 0 {
		t.Fatalf("expected cached snapshot to lag the store, got count %d", cachedSnap.AccessCount)
	}

	// Corrupt cached payloads fall through to the store.
	mc.Put(ctx, cache.StatsKey(link.ShortCode), "{not json", cache.SnapshotTTL)
	freshSnap, err := svc.Stats(ctx, link.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	if freshSnap.AccessCount != 1 {
		t.Fatalf("expected store fallback to see count 1, got %d", freshSnap.AccessCount)
	}
}

func TestLinkService_Search_CachesResults(t *testing.T) {
	repo := newMemRepo()
	mc := newMemCache()
	svc := newTestService(repo, mc)
	ctx := context.Background()

	if _, err := svc.Shorten(ctx, ShortenInput{OriginalURL: "https://golang.org/doc", CustomAlias: strptr("sr1")}); err != nil {
		t.Fatal(err)
	}

	results, err := svc.Search(ctx, "golang")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	raw, ok := mc.Get(ctx, cache.SearchKey("golang"))
	if !ok {
		t.Fatal("expected search results cached")
	}
	var cached []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("cached search payload not valid JSON: %v", err)
	}
}

func accessEventFor(linkID uint, at time.Time) model.AccessEvent {
	return model.AccessEvent{LinkID: linkID, AccessedAt: at}
}
