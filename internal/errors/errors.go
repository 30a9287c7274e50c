package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 票务错误 (2000-2999)
	ErrIssueFailed     ErrorCode = 2000
	ErrTicketNotFound  ErrorCode = 2001
	ErrInvalidPlate    ErrorCode = 2002
	ErrIssueInProgress ErrorCode = 2003
	ErrUnknownVehicle  ErrorCode = 2004

	// 设备错误 (3000-3999)
	ErrDeviceUnavailable ErrorCode = 3000
	ErrDevicePermission  ErrorCode = 3001
	ErrDeviceLost        ErrorCode = 3002
	ErrSerialPortOpen    ErrorCode = 3003
	ErrSerialPortWrite   ErrorCode = 3004
	ErrSerialPortRead    ErrorCode = 3005
	ErrSerialTimeout     ErrorCode = 3006

	// 网络错误 (4000-4499)
	ErrNetworkTimeout    ErrorCode = 4000
	ErrNetworkRefused    ErrorCode = 4001
	ErrMalformedResponse ErrorCode = 4002
	ErrServerRejected    ErrorCode = 4003

	// 打印错误 (4500-4999)
	ErrNoDefaultPrinter  ErrorCode = 4500
	ErrPrinterOffline    ErrorCode = 4501
	ErrPrinterOutOfPaper ErrorCode = 4502
	ErrPrinterJammed     ErrorCode = 4503
	ErrPrinterBusy       ErrorCode = 4504
	ErrPrinterUnknown    ErrorCode = 4505
	ErrBarcodePayload    ErrorCode = 4506

	// 存储错误 (5000-5999)
	ErrCounterRead     ErrorCode = 5000
	ErrCounterCorrupt  ErrorCode = 5001
	ErrCounterWrite    ErrorCode = 5002
	ErrQueueRead       ErrorCode = 5003
	ErrQueueWrite      ErrorCode = 5004
	ErrDatabaseConnect ErrorCode = 5005
	ErrDatabaseQuery   ErrorCode = 5006
	ErrDataIntegrity   ErrorCode = 5007

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrAuthorization  ErrorCode = 7001
	ErrTokenExpired   ErrorCode = 7002
	ErrTokenInvalid   ErrorCode = 7003
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	// 票务错误
	ErrIssueFailed:     "票据签发失败",
	ErrTicketNotFound:  "票据未找到",
	ErrInvalidPlate:    "无效的车牌号",
	ErrIssueInProgress: "正在签发票据",
	ErrUnknownVehicle:  "未知的车辆类型",

	// 设备错误
	ErrDeviceUnavailable: "设备不可用",
	ErrDevicePermission:  "设备访问权限不足",
	ErrDeviceLost:        "设备连接丢失",
	ErrSerialPortOpen:    "串口打开失败",
	ErrSerialPortWrite:   "串口写入失败",
	ErrSerialPortRead:    "串口读取失败",
	ErrSerialTimeout:     "串口通信超时",

	// 网络错误
	ErrNetworkTimeout:    "网络请求超时",
	ErrNetworkRefused:    "网络连接被拒绝",
	ErrMalformedResponse: "服务器响应格式错误",
	ErrServerRejected:    "服务器拒绝请求",

	// 打印错误
	ErrNoDefaultPrinter:  "未找到默认打印机",
	ErrPrinterOffline:    "打印机离线",
	ErrPrinterOutOfPaper: "打印机缺纸",
	ErrPrinterJammed:     "打印机卡纸",
	ErrPrinterBusy:       "打印机忙",
	ErrPrinterUnknown:    "打印机未知错误",
	ErrBarcodePayload:    "条码数据无效",

	// 存储错误
	ErrCounterRead:     "计数器文件读取失败",
	ErrCounterCorrupt:  "计数器文件已损坏",
	ErrCounterWrite:    "计数器文件写入失败",
	ErrQueueRead:       "离线队列文件读取失败",
	ErrQueueWrite:      "离线队列文件写入失败",
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDataIntegrity:   "数据完整性错误",

	// 配置错误
	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",
	ErrConfigMissing:  "配置项缺失",

	// 安全错误
	ErrAuthentication: "认证失败",
	ErrAuthorization:  "授权失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`              // 错误码
	Message string       `json:"message"`           // 错误消息
	Details string       `json:"details"`           // 详细信息
	Cause   error        `json:"-"`                 // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"`   // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/parking-gate/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code >= 1001 && e.Code <= 1003:
		return 400 // Bad Request
	case e.Code == ErrNotFound || e.Code == ErrTicketNotFound:
		return 404 // Not Found
	case e.Code == ErrPermissionDenied:
		return 403 // Forbidden
	case e.Code == ErrTimeout || e.Code == ErrNetworkTimeout:
		return 408 // Request Timeout
	case e.Code >= 7000 && e.Code <= 7003:
		return 401 // Unauthorized
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrTimeout,
		ErrSerialTimeout,
		ErrNetworkTimeout,
		ErrNetworkRefused,
		ErrDeviceLost,
		ErrPrinterBusy,
		ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// IsCritical 判断是否为严重错误
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrCounterCorrupt,
		ErrCounterWrite,
		ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing,
		ErrDataIntegrity:
		return true
	default:
		return false
	}
}

// IsStorage 判断是否为存储类错误
func IsStorage(err error) bool {
	code := GetCode(err)
	return code >= 5000 && code <= 5999
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
