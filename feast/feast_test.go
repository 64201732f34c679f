package feast

import (
	"context"
	"errors"
	"testing"

	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
)

// fakeClient 按 movie_id 返回预置特征，并记录每次请求的实体数。
type fakeClient struct {
	values  map[int64]map[string]any
	batches []int
	err     error
}

func (c *fakeClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, len(req.EntityRows))
	resp := &GetOnlineFeaturesResponse{}
	for _, row := range req.EntityRows {
		id := row["movie_id"].(int64)
		values := map[string]any{}
		for k, v := range c.values[id] {
			values[k] = v
		}
		resp.FeatureVectors = append(resp.FeatureVectors, FeatureVector{Values: values, EntityRow: row})
	}
	return resp, nil
}

func (c *fakeClient) Close() error { return nil }

func TestAggregateSource_Batches(t *testing.T) {
	client := &fakeClient{values: map[int64]map[string]any{
		1: {"movie_stats:avg_user_rating": 4.5, "movie_stats:user_rating_count": float64(20)},
		2: {"movie_stats:avg_user_rating": 3.0},
		3: {"movie_stats:avg_user_rating": 2.5, "movie_stats:user_rating_count": float64(4)},
	}}
	src := NewAggregateSource(client, AggregateConfig{BatchSize: 2})

	aggs, err := src.RatingAggregates(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, client.batches)
	assert.Equal(t, map[int64]core.RatingAggregate{
		1: {MovieID: 1, Mean: 4.5, Count: 20},
		3: {MovieID: 3, Mean: 2.5, Count: 4},
	}, aggs)
}

func TestAggregateSource_Empty(t *testing.T) {
	client := &fakeClient{}
	aggs, err := NewAggregateSource(client, AggregateConfig{}).RatingAggregates(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, aggs)
	assert.Empty(t, client.batches)
}

func TestAggregateSource_Error(t *testing.T) {
	client := &fakeClient{err: errors.New("unavailable")}
	_, err := NewAggregateSource(client, AggregateConfig{}).RatingAggregates(context.Background(), []int64{1})
	assert.ErrorContains(t, err, "unavailable")
}

func TestConvertFromSDKValue(t *testing.T) {
	cases := []struct {
		name string
		in   *types.Value
		want any
	}{
		{"nil", nil, nil},
		{"double", &types.Value{Val: &types.Value_DoubleVal{DoubleVal: 4.25}}, 4.25},
		{"int64", &types.Value{Val: &types.Value_Int64Val{Int64Val: 12}}, float64(12)},
		{"float", &types.Value{Val: &types.Value_FloatVal{FloatVal: 0.5}}, 0.5},
		{"bool", &types.Value{Val: &types.Value_BoolVal{BoolVal: true}}, float64(1)},
		{"string", &types.Value{Val: &types.Value_StringVal{StringVal: "x"}}, "x"},
		{"unset", &types.Value{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, convertFromSDKValue(tc.in))
		})
	}
}

func TestConvertToSDKValue(t *testing.T) {
	assert.Equal(t, int64(949), convertToSDKValue(int64(949)).GetInt64Val())
	assert.Equal(t, int64(7), convertToSDKValue(7).GetInt64Val())
	assert.Equal(t, "a", convertToSDKValue("a").GetStringVal())
	assert.Equal(t, 1.5, convertToSDKValue(1.5).GetDoubleVal())
}
