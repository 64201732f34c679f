package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 在线特征读取的最小接口。
// 评分聚合只依赖在线存储，离线特征与物化由 Feast 自身的作业负责。
type Client interface {
	// GetOnlineFeatures 获取在线特征，例如
	// features: ["movie_stats:avg_user_rating"]，entityRows: [{"movie_id": 949}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	Features   []string
	EntityRows []map[string]any
	// Project 为空时使用客户端默认项目
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应，FeatureVectors 与 EntityRows 一一对应
type GetOnlineFeaturesResponse struct {
	FeatureVectors []FeatureVector
}

// FeatureVector 是一个实体行的特征值，缺失的特征不出现在 Values 中
type FeatureVector struct {
	Values    map[string]any
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	Endpoint string
	Project  string
	Timeout  time.Duration
	// Token 非空时使用静态 Token 认证
	Token string
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithToken 设置静态 Token 认证
func WithToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
	}
}
