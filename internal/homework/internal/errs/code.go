package errs

// ErrorCode 稳定的对外错误码，客户端据此区分可重试与终态失败。
type ErrorCode struct {
	Code string
	Msg  string
}

var (
	RateLimited   = ErrorCode{Code: "RATE_LIMITED", Msg: "操作过于频繁，请 5 分钟后再试"}
	Exhausted     = ErrorCode{Code: "EXHAUSTED", Msg: "批改通道繁忙，请稍后重试"}
	AIError       = ErrorCode{Code: "AI_ERROR", Msg: "AI 批改失败，请稍后重试"}
	FileTooLarge  = ErrorCode{Code: "FILE_TOO_LARGE", Msg: "图片超过 10MB 大小限制"}
	AnalyzeFailed = ErrorCode{Code: "ANALYZE_FAILED", Msg: "批改失败"}
	NotFound      = ErrorCode{Code: "NOT_FOUND", Msg: "未找到批改记录"}
	SystemError   = ErrorCode{Code: "SYSTEM_ERROR", Msg: "系统错误"}
	ImageError    = ErrorCode{Code: "IMG_ERROR", Msg: "图片处理失败"}
)
