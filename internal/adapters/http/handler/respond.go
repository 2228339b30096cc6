package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/validation"
	"go.uber.org/zap"
)

// RFC 7807 レスポンスの type に設定する問題種別です。
const (
	ProblemTypeValidation  = "/problems/validation-failed"
	ProblemTypeNotFound    = "/problems/not-found"
	ProblemTypeConflict    = "/problems/conflict"
	ProblemTypeRateLimited = "/problems/rate-limited"
	ProblemTypeInternal    = "/problems/internal-error"
)

const contentTypeProblem = "application/problem+json"

// Problem は RFC 7807 のエラーレスポンスです。検証エラーの場合は Fields に項目ごとの理由が入ります。
type Problem struct {
	Type      string                  `json:"type"`
	Title     string                  `json:"title"`
	Status    int                     `json:"status"`
	Detail    string                  `json:"detail,omitempty"`
	Instance  string                  `json:"instance,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encode(w, logger, status, body)
}

func writeProblem(w http.ResponseWriter, logger *zap.Logger, p Problem) {
	w.Header().Set("Content-Type", contentTypeProblem)
	w.WriteHeader(p.Status)
	encode(w, logger, p.Status, p)
}

// encode は本文を書き込み、失敗した場合は debug で記録します。
func encode(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Debug("failed to write response body", zap.Int("status", status), zap.Error(err))
	}
}
