package xerr

import "fmt"

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	DbError            = 501
	RecordNotFound     = 404

	// 充值流水线错误码
	PersistFailed    = 510 // 原始事件落库失败 (对外表现为 500)
	MissingAddress   = 511 // 事件中没有可用的充值地址
	UnknownAddress   = 512 // 地址不在充值地址登记表中
	MissingAccount   = 513 // accountId 找不到对应虚拟账户
	InsufficientData = 514 // 入账所需的金额/币种缺失
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case PersistFailed:
		return "事件持久化失败"
	case MissingAddress:
		return "事件缺少充值地址"
	case UnknownAddress:
		return "充值地址未登记"
	case MissingAccount:
		return "虚拟账户不存在"
	case InsufficientData:
		return "入账数据不完整"
	default:
		return "未知错误"
	}
}

// Code 提取错误码，非 CodeError 一律按 ServerCommonError 处理
func Code(err error) int {
	if err == nil {
		return OK
	}
	if ce, ok := err.(*CodeError); ok {
		return ce.Code
	}
	return ServerCommonError
}
