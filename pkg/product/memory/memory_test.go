package memory

import (
	"context"
	"testing"

	"orderdesk/pkg/product"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := New()
	p := product.Product{ID: "1", Name: "Brik", Price: 12, Category: product.CategorySavory, PiecesPerKilo: 8}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Brik" {
		t.Fatalf("expected Brik, got %s", got.Name)
	}
	p.Name = "Brik à l'oeuf"
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if list[0].Name != "Brik à l'oeuf" {
		t.Fatalf("update not applied: %s", list[0].Name)
	}
	if err := repo.Update(ctx, product.Product{ID: "missing"}); err != product.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); err != product.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
