package stores_test

import (
	"context"
	"testing"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/stores/fakedriver"
	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendPicksMostFreeSpace(t *testing.T) {
	registry := stores.NewRegistry()
	registry.Register("small", fakedriver.New(100))
	registry.Register("big", fakedriver.New(10_000))

	candidates := []types.Store{
		{ID: 1, Name: "small", Available: true},
		{ID: 2, Name: "big", Available: true},
	}

	best, err := stores.Recommend(context.Background(), candidates, registry, stores.NewDFCache(), 500)
	require.NoError(t, err)
	assert.Equal(t, "big", best.Name)
}

func TestRecommendSkipsUnavailableStores(t *testing.T) {
	registry := stores.NewRegistry()
	registry.Register("offline", fakedriver.New(10_000))
	registry.Register("online", fakedriver.New(500))

	candidates := []types.Store{
		{ID: 1, Name: "offline", Available: false},
		{ID: 2, Name: "online", Available: true},
	}

	best, err := stores.Recommend(context.Background(), candidates, registry, stores.NewDFCache(), 100)
	require.NoError(t, err)
	assert.Equal(t, "online", best.Name)
}

func TestRecommendInsufficientCapacity(t *testing.T) {
	registry := stores.NewRegistry()
	registry.Register("only", fakedriver.New(10))

	candidates := []types.Store{{ID: 1, Name: "only", Available: true}}

	_, err := stores.Recommend(context.Background(), candidates, registry, stores.NewDFCache(), 1000)
	require.Error(t, err)
	assert.Equal(t, errs.InsufficientCapacity, errs.KindOf(err))
}

func TestRecommendNegativeSize(t *testing.T) {
	_, err := stores.Recommend(context.Background(), nil, stores.NewRegistry(), stores.NewDFCache(), -1)
	require.Error(t, err)
	assert.Equal(t, errs.BadRequest, errs.KindOf(err))
}
