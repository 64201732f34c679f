package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 三类错误对应三种处理方式：
//   - UNAVAILABLE：快照未构建 / 目录为空，顶层入口直接返回给调用方
//   - NOT_FOUND：未知的电影或用户，在相似/扩展链路上视为空结果
//   - UPSTREAM：协作方（数据库、特征库）查询失败，所在子步骤走兜底
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "index", "catalog"）
	Err     error  // 底层错误，可为空
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// GetDomainError 获取错误链上的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapUpstream 把协作方错误包装为 UPSTREAM 领域错误。
func WrapUpstream(module, message string, err error) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Module:  module,
		Code:    ErrorCodeUpstream,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 快照未就绪
	ErrorCodeUpstream      = "UPSTREAM"       // 协作方查询失败
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleIndex    = "index"
	ModuleCatalog  = "catalog"
	ModuleFeature  = "feature"
	ModuleRank     = "rank"
	ModuleSnapshot = "snapshot"
)

var (
	// ErrIndexUnavailable 表示快照尚未训练或目录为空
	ErrIndexUnavailable = NewDomainError(ModuleIndex, ErrorCodeUnavailable, "index: snapshot not built")

	// ErrMovieNotFound 表示电影不在当前快照中
	ErrMovieNotFound = NewDomainError(ModuleIndex, ErrorCodeNotFound, "index: movie not found")

	// ErrUserNotFound 表示用户 ID 无法解析
	ErrUserNotFound = NewDomainError(ModuleCatalog, ErrorCodeNotFound, "catalog: user not found")

	// ErrTrainingInProgress 表示已有重训在执行
	ErrTrainingInProgress = NewDomainError(ModuleSnapshot, ErrorCodeUnavailable, "snapshot: training already in progress")
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsUpstream 检查错误是否为 UPSTREAM
func IsUpstream(err error) bool { return hasCode(err, ErrorCodeUpstream) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }
