package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/popgate/popgate/internal/store"
)

func TestMemoryStore_ExperienceLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertExperience(ctx, &store.Experience{ID: "a", Kind: "banner"}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := s.UpsertExperience(ctx, &store.Experience{ID: "b", Kind: "modal"}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := s.UpsertExperience(ctx, &store.Experience{ID: "a", Kind: "tooltip"}); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}

	exps, err := s.ListExperiences(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(exps) != 2 || exps[0].ID != "a" || exps[1].ID != "b" {
		t.Errorf("overwrites must keep registration order, got %+v", exps)
	}
	if exps[0].Kind != "tooltip" {
		t.Errorf("expected the overwritten definition, got %v", exps[0].Kind)
	}

	if err := s.DeleteExperience(ctx, "a"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := s.GetExperience(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_KV(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, found, _ := s.GetValue(ctx, "k"); found {
		t.Fatal("expected missing key")
	}
	if err := s.SetValue(ctx, "k", "v"); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	v, found, err := s.GetValue(ctx, "k")
	if err != nil || !found || v != "v" {
		t.Errorf("expected v, got %q found=%v err=%v", v, found, err)
	}
}
