package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetSetting(ctx, "maintenance", "off")
	if err != nil {
		t.Fatalf("get missing setting: %v", err)
	}
	if got != "off" {
		t.Fatalf("expected fallback off, got %q", got)
	}

	if err := store.SetSetting(ctx, "maintenance", "on"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if err := store.SetSetting(ctx, "maintenance", "off"); err != nil {
		t.Fatalf("overwrite setting: %v", err)
	}

	got, err = store.GetSetting(ctx, "maintenance", "on")
	if err != nil {
		t.Fatalf("get setting: %v", err)
	}
	if got != "off" {
		t.Fatalf("expected off, got %q", got)
	}
}

func TestBlacklist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	blocked, err := store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if blocked {
		t.Fatal("expected u1 not blacklisted")
	}

	if err := store.AddBlacklist(ctx, "u1", "scam links", "admin1"); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}
	blocked, err = store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if !blocked {
		t.Fatal("expected u1 blacklisted")
	}

	entries, err := store.ListBlacklist(ctx)
	if err != nil {
		t.Fatalf("list blacklist: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "u1" || entries[0].Reason != "scam links" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := store.RemoveBlacklist(ctx, "u1"); err != nil {
		t.Fatalf("remove blacklist: %v", err)
	}
	blocked, err = store.IsBlacklisted(ctx, "u1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if blocked {
		t.Fatal("expected u1 removed from blacklist")
	}
}

func TestAdminLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	logs := []AdminLog{
		{AdminID: "a1", Action: "addbal", Target: "alice", Details: "+50 copper"},
		{AdminID: "a1", Action: "removebal", Target: "bob", Details: "-10 copper"},
		{AdminID: "a2", Action: "addproduct", Target: "RARE_SWORD", Details: "price 120"},
	}
	for _, entry := range logs {
		if err := store.AddAdminLog(ctx, entry); err != nil {
			t.Fatalf("add admin log: %v", err)
		}
	}

	got, err := store.ListAdminLogs(ctx, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list admin logs: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(got))
	}

	future, err := store.ListAdminLogs(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list admin logs: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("expected no logs after future cutoff, got %d", len(future))
	}
}

func TestDomainLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddDomainBlock(ctx, "g1", "bad.example"); err != nil {
		t.Fatalf("add domain block: %v", err)
	}
	if err := store.AddDomainBlock(ctx, "g1", "bad.example"); err != nil {
		t.Fatalf("re-add domain block: %v", err)
	}
	if err := store.AddDomainAllow(ctx, "g1", "good.example"); err != nil {
		t.Fatalf("add domain allow: %v", err)
	}

	blocked, err := store.ListDomainBlock(ctx, "g1")
	if err != nil {
		t.Fatalf("list domain block: %v", err)
	}
	if len(blocked) != 1 || blocked[0] != "bad.example" {
		t.Fatalf("unexpected blocklist: %v", blocked)
	}

	other, err := store.ListDomainBlock(ctx, "g2")
	if err != nil {
		t.Fatalf("list domain block: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty blocklist for g2, got %v", other)
	}

	if err := store.RemoveDomainBlock(ctx, "g1", "bad.example"); err != nil {
		t.Fatalf("remove domain block: %v", err)
	}
	blocked, err = store.ListDomainBlock(ctx, "g1")
	if err != nil {
		t.Fatalf("list domain block: %v", err)
	}
	if len(blocked) != 0 {
		t.Fatalf("expected empty blocklist, got %v", blocked)
	}

	allowed, err := store.ListDomainAllow(ctx, "g1")
	if err != nil {
		t.Fatalf("list domain allow: %v", err)
	}
	if len(allowed) != 1 || allowed[0] != "good.example" {
		t.Fatalf("unexpected allowlist: %v", allowed)
	}
}
