// Package response 提供统一的 HTTP JSON 响应封装
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Message: "ok", Data: data})
}

// Created 返回创建成功响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Code: 0, Message: "created", Data: data})
}

// Error 返回错误响应
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Body{Code: status, Message: message})
}

// ErrorWithData 返回带附加数据的错误响应，如校验明细
func ErrorWithData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Body{Code: status, Message: message, Data: data})
}
