package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		page, size, def    int
		wantPage, wantSize int
	}{
		{name: "defaults", page: 0, size: 0, def: 10, wantPage: 1, wantSize: 10},
		{name: "negative", page: -3, size: -1, def: 20, wantPage: 1, wantSize: 20},
		{name: "clamped", page: 2, size: 1000, def: 10, wantPage: 2, wantSize: MaxPageSize},
		{name: "kept", page: 4, size: 5, def: 10, wantPage: 4, wantSize: 5},
		{name: "huge page", page: 1_000_000_000_000_000_000, size: 10, def: 10, wantPage: MaxPage, wantSize: 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, s := Normalize(tt.page, tt.size, tt.def)
			assert.Equal(t, tt.wantPage, p)
			assert.Equal(t, tt.wantSize, s)
		})
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	page, meta := Paginate(items, 3, 10)
	assert.Equal(t, []int{20, 21, 22, 23, 24}, page)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Total: 25, TotalPages: 3}, meta)

	page, meta = Paginate(items, 9, 10)
	assert.Empty(t, page)
	assert.Equal(t, 3, meta.TotalPages)

	page, meta = Paginate([]int{}, 1, 10)
	assert.Empty(t, page)
	assert.Equal(t, 0, meta.TotalPages)
}

func TestPaginate_HugePageIsEmpty(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3}
	assert.NotPanics(t, func() {
		page, meta := Paginate(items, 1_000_000_000_000_000_000, 10)
		assert.Empty(t, page)
		assert.Equal(t, 3, meta.Total)
		assert.Equal(t, 1, meta.TotalPages)
	})
}

func TestCalculate_NeverNegative(t *testing.T) {
	t.Parallel()

	from, size := Calculate(1_000_000_000_000_000_000, 100)
	assert.Equal(t, 100, size)
	assert.Equal(t, (MaxPage-1)*100, from)
	assert.GreaterOrEqual(t, from, 0)
}

func TestParseIntDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, ParseIntDefault("5", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
}
