package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodeResourceNotFound = 1003
	CodeUploadTooLarge   = 1004
	CodeNoCodeFiles      = 1005
	CodeServerError      = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "参数错误",
	CodeAuthFailed:       "认证失败",
	CodeResourceNotFound: "资源不存在",
	CodeUploadTooLarge:   "上传文件过大",
	CodeNoCodeFiles:      "没有可分析的代码文件",
	CodeServerError:      "服务器内部错误",
}

// Response 统一响应结构，HTTP 状态码始终为 200
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, codeMessages[CodeSuccess], data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	Success(c, PageData{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    items,
	})
}

// Error 错误响应，message 为空时使用错误码的默认消息
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

func ParamError(c *gin.Context, message string)       { Error(c, CodeParamError, message) }
func AuthError(c *gin.Context, message string)        { Error(c, CodeAuthFailed, message) }
func NotFoundError(c *gin.Context, message string)    { Error(c, CodeResourceNotFound, message) }
func TooLargeError(c *gin.Context, message string)    { Error(c, CodeUploadTooLarge, message) }
func NoCodeFilesError(c *gin.Context, message string) { Error(c, CodeNoCodeFiles, message) }
func ServerError(c *gin.Context, message string)      { Error(c, CodeServerError, message) }
