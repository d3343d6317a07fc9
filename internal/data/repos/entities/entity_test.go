package entities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/data/repos/testutil"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

func TestUpsertByNaturalKeyReturnsSameRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEntityRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProject(t, ctx, tx, uuid.New())
	a, err := repo.UpsertByNaturalKey(dbc, p.ID, "Acme  Corp", entity.TypeOrganization)
	require.NoError(t, err)
	b, err := repo.UpsertByNaturalKey(dbc, p.ID, "Acme Corp", entity.TypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := repo.UpsertByNaturalKey(dbc, p.ID, "Acme Corp", entity.TypeBrand)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestLinkContentCountsOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEntityRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProject(t, ctx, tx, uuid.New())
	item := testutil.SeedContent(t, ctx, tx, p.ID)
	e, err := repo.UpsertByNaturalKey(dbc, p.ID, "Widget", entity.TypeProduct)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		created, err := repo.LinkContent(dbc, &types.ContentEntity{ContentItemID: item.ID, EntityID: e.ID, Salience: 0.4}, false)
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
	}

	var got types.Entity
	require.NoError(t, tx.First(&got, "id = ?", e.ID).Error)
	assert.Equal(t, 1, got.Frequency)
}

func TestResetTopicLinksAndStats(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEntityRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	p := testutil.SeedProject(t, ctx, tx, uuid.New())
	i1 := testutil.SeedContent(t, ctx, tx, p.ID)
	i2 := testutil.SeedContent(t, ctx, tx, p.ID)

	topic, err := repo.UpsertByNaturalKey(dbc, p.ID, "Pricing", entity.TypeTopic)
	require.NoError(t, err)
	person, err := repo.UpsertByNaturalKey(dbc, p.ID, "Ada", entity.TypePerson)
	require.NoError(t, err)
	for _, it := range []uuid.UUID{i1.ID, i2.ID} {
		_, err = repo.LinkContent(dbc, &types.ContentEntity{ContentItemID: it, EntityID: topic.ID, Salience: 0.9}, true)
		require.NoError(t, err)
		_, err = repo.LinkContent(dbc, &types.ContentEntity{ContentItemID: it, EntityID: person.ID, Salience: 0.5}, false)
		require.NoError(t, err)
	}

	stats, err := repo.Stats(dbc, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Entities)
	assert.EqualValues(t, 1, stats.RecurringEntities)
	assert.Equal(t, []int64{2}, stats.TopicSizes)
	assert.EqualValues(t, 2, stats.ItemsInTopics)

	require.NoError(t, repo.ResetTopicLinks(dbc, p.ID))
	pruned, err := repo.PruneEmptyTopics(dbc, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	stats, err = repo.Stats(dbc, p.ID)
	require.NoError(t, err)
	assert.Empty(t, stats.TopicSizes)
	assert.EqualValues(t, 0, stats.ItemsInTopics)
	assert.EqualValues(t, 1, stats.Entities)
}
