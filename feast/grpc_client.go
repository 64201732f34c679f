package feast

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// DefaultPort 是 Feast Serving 的 gRPC 端口。
const DefaultPort = 6566

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
type GrpcClient struct {
	client   *feastsdk.GrpcClient
	Project  string
	Endpoint string
	timeout  time.Duration
}

// NewGrpcClient 创建 Feast gRPC 客户端。
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = DefaultPort
	}
	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if config.Token != "" {
		client, err = feastsdk.NewSecureGrpcClient(host, port, feastsdk.SecurityConfig{
			Credential: feastsdk.NewStaticCredential(config.Token),
		})
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("feast: connect %s: %w", config.Endpoint, err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
		timeout:  config.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("feast: features are required")
	}
	if len(req.EntityRows) == 0 {
		return &GetOnlineFeaturesResponse{}, nil
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}

	entities := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entity := make(feastsdk.Row, len(row))
		for k, v := range row {
			entity[k] = convertToSDKValue(v)
		}
		entities[i] = entity
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entities,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast: get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("feast: response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}
	vectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if v := convertFromSDKValue(row[name]); v != nil {
				values[name] = v
			}
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 释放客户端。SDK 的连接由 gRPC 管理。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

func convertToSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// convertFromSDKValue 把 SDK 的 *types.Value 转为 Go 值；数值统一为 float64，空值返回 nil。
func convertFromSDKValue(v *types.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.GetVal().(type) {
	case *types.Value_DoubleVal:
		return val.DoubleVal
	case *types.Value_FloatVal:
		return float64(val.FloatVal)
	case *types.Value_Int64Val:
		return float64(val.Int64Val)
	case *types.Value_Int32Val:
		return float64(val.Int32Val)
	case *types.Value_BoolVal:
		if val.BoolVal {
			return float64(1)
		}
		return float64(0)
	case *types.Value_StringVal:
		return val.StringVal
	case *types.Value_BytesVal:
		return string(val.BytesVal)
	default:
		return nil
	}
}

var _ Client = (*GrpcClient)(nil)
