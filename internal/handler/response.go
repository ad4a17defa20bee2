// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/roofdispatch/roofdispatch/pkg/errors"
	"github.com/roofdispatch/roofdispatch/pkg/logger"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 4 << 20

// decodeJSON 解析请求体
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) *apperrors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn().Err(err).Msg("写入响应失败")
	}
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("请求处理失败")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}
