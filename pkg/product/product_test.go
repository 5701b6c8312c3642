package product

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValidate(t *testing.T) {
	valid := Input{Name: "Baklawa", Price: 42.5, Category: CategorySweet, PiecesPerKilo: 40}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"short name", Input{Name: "ab", Price: 1, Category: CategorySavory, PiecesPerKilo: 1}, "product_name"},
		{"long name", Input{Name: strings.Repeat("x", 51), Price: 1, Category: CategorySavory, PiecesPerKilo: 1}, "product_name"},
		{"zero price", Input{Name: "Brik", Price: 0, Category: CategorySavory, PiecesPerKilo: 1}, "product_price"},
		{"huge price", Input{Name: "Brik", Price: 100_001, Category: CategorySavory, PiecesPerKilo: 1}, "product_price"},
		{"unknown category", Input{Name: "Brik", Price: 1, Category: "Amer", PiecesPerKilo: 1}, "product_category"},
		{"missing pieces", Input{Name: "Brik", Price: 1, Category: CategorySavory}, "product_piece_per_kilo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
			assert.Len(t, verr.Fields, 1)
		})
	}
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := Input{}.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "invalid product: product_category"))
	assert.Contains(t, msg, "product_price")
}

func TestSortByCategoryThenName(t *testing.T) {
	ps := []Product{
		{ID: "1", Name: "zlabia", Category: CategorySweet},
		{ID: "2", Name: "Brik", Category: CategorySavory},
		{ID: "3", Name: "Baklawa", Category: CategorySweet},
		{ID: "4", Name: "Fricassé", Category: CategorySavory},
	}
	Sort(ps)

	var ids []string
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"2", "4", "3", "1"}, ids)
}

func TestFilter(t *testing.T) {
	ps := []Product{{Name: "Makroudh"}, {Name: "Kaak warka"}, {Name: "Makrout louz"}}

	assert.Len(t, Filter(ps, "MAKR"), 2)
	assert.Len(t, Filter(ps, "  "), 3)
	assert.Empty(t, Filter(ps, "brik"))
}

func TestDisplayImageURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/bucket/p.png",
		DisplayImageURL("https://storage.cloud.google.com/bucket/p.png"))
	assert.Equal(t, "", DisplayImageURL(""))
}

func TestApplyKeepsIdentity(t *testing.T) {
	p := Product{ID: "p1", Name: "Old", ImageURL: "http://img"}
	got := p.Apply(Input{Name: "New", Price: 3, Category: CategorySweet, PiecesPerKilo: 10})
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "http://img", got.ImageURL)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, got.Input(), Input{Name: "New", Price: 3, Category: CategorySweet, PiecesPerKilo: 10})
}
