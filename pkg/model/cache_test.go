package model_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meme-go/meme/pkg/log"
	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/model/mocks"
)

func TestCacheLogsTableReplacement(t *testing.T) {
	fetcher := mocks.NewMockFetcher(t)
	fetcher.EXPECT().Fetch(mock.Anything, model.TableRmat, testKey).Return(beamline(t), nil).Times(2)

	rec := &log.Recorder{}
	cache := model.NewCache(fetcher, testKey, false, nil, rec)
	ctx := context.Background()

	_, err := cache.RmatTable(ctx, false)
	require.NoError(t, err)
	_, err = cache.RmatTable(ctx, true)
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 2)
	first, second := events[0], events[1]
	assert.Equal(t, log.CategoryState, first.Category)
	assert.Equal(t, "CU_HXR", first.Model)
	assert.Equal(t, "BMAD:SYS0:1:CU_HXR:LIVE:RMAT", first.Path)
	require.NotNil(t, first.StateChange)
	assert.Equal(t, log.StateEntityTable, first.StateChange.Entity)
	assert.Empty(t, first.StateChange.OldState)
	assert.Equal(t, "fetched", first.StateChange.Reason)

	require.NotNil(t, second.StateChange)
	assert.Equal(t, first.StateChange.NewState, second.StateChange.OldState)
	assert.Equal(t, "unchanged", second.StateChange.Reason)
}

func TestCacheInvalidate(t *testing.T) {
	fetcher := mocks.NewMockFetcher(t)
	fetcher.EXPECT().Fetch(mock.Anything, model.TableRmat, testKey).Return(beamline(t), nil).Times(2)
	fetcher.EXPECT().Fetch(mock.Anything, model.TableTwiss, testKey).Return(encodeTwiss(t), nil).Once()

	cache := model.NewCache(fetcher, testKey, false, nil, nil)
	ctx := context.Background()

	_, err := cache.RmatTable(ctx, false)
	require.NoError(t, err)
	cache.Invalidate()
	_, err = cache.RmatTable(ctx, false)
	require.NoError(t, err)
	_, err = cache.TwissTable(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, testKey, cache.Key())
}
