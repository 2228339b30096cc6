package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/query"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/validation"
	"go.uber.org/zap"
)

// HeaderNextOffset は次ページが存在する場合に一覧レスポンスへ付与するヘッダーです。
const HeaderNextOffset = "X-Next-Offset"

const (
	fieldID   = "id"
	fieldBody = "body"

	maxBodyBytes = 1 << 20
)

// CompanyHandler は会社リソースの HTTP エンドポイントです。
type CompanyHandler struct {
	svc    company.UseCase
	root   string
	logger *zap.Logger
}

// NewCompanyHandler は CompanyHandler を生成します。root は Location ヘッダーの基点となるパスです。
func NewCompanyHandler(svc company.UseCase, root string, logger *zap.Logger) *CompanyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyHandler{svc: svc, root: root, logger: logger}
}

// Root はコレクションのパスを返します。
func (h *CompanyHandler) Root() string {
	return Location(h.root)
}

// Routes はコレクションのパスを基点とするルートを登録します。
func (h *CompanyHandler) Routes(r chi.Router) {
	r.Get("/", h.ListCompanies)
	r.Post("/", h.CreateCompany)
	r.Put("/", h.UpdateCompany)
	r.Get("/{id}", h.GetCompany)
	r.Delete("/{id}", h.DeleteCompany)
}

// ListCompanies は offset / max / sort / order に従って会社の一覧を返します。
func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	args, err := query.Parse(rawArguments(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.svc.ListCompanies(r.Context(), company.ListCompaniesInput{Args: args})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if next, ok := result.NextOffset(); ok {
		w.Header().Set(HeaderNextOffset, strconv.Itoa(next))
	}
	w.Header().Set("Location", Location(h.root))
	writeJSON(w, h.logger, http.StatusOK, toCompanyResponses(result.Companies))
}

// GetCompany は ID で会社を返します。
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	found, err := h.svc.GetCompany(r.Context(), company.GetCompanyInput{ID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", Location(h.root, found.ID))
	writeJSON(w, h.logger, http.StatusOK, toCompanyResponse(found))
}

// CreateCompany は会社を作成し、採番された ID を Location に設定して 201 を返します。
func (h *CompanyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.svc.CreateCompany(r.Context(), company.CreateCompanyInput{
		Name:         req.Name,
		Registration: req.Registration,
		Description:  req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("company created", zap.Int64("company_id", created.ID), zap.String("request_id", RequestIDFromContext(r.Context())))

	w.Header().Set("Location", Location(h.root, created.ID))
	writeJSON(w, h.logger, http.StatusCreated, toCompanyResponse(created))
}

// UpdateCompany は本文の id で指定された会社を全置換で更新し、204 を返します。
func (h *CompanyHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req updateCompanyRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.svc.UpdateCompany(r.Context(), company.UpdateCompanyInput{
		ID:           req.ID,
		Name:         req.Name,
		Registration: req.Registration,
		Description:  req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", Location(h.root, updated.ID))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCompany は会社を論理削除し、204 を返します。削除済みの会社に対しても 204 です。
func (h *CompanyHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteCompany(r.Context(), company.DeleteCompanyInput{ID: id}); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("company deleted", zap.Int64("company_id", id), zap.String("request_id", RequestIDFromContext(r.Context())))

	w.Header().Set("Location", Location(h.root, id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	p := toProblem(err)
	p.Instance = r.URL.Path
	p.RequestID = RequestIDFromContext(r.Context())

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", p.Status),
		zap.String("request_id", p.RequestID),
		zap.Error(err),
	}
	if p.Status >= http.StatusInternalServerError {
		if errors.Is(err, context.Canceled) {
			h.logger.Warn("request canceled", fields...)
		} else {
			h.logger.Error("request failed", fields...)
		}
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	writeProblem(w, h.logger, p)
}

func rawArguments(values url.Values) query.Raw {
	lookup := func(key string) *string {
		if !values.Has(key) {
			return nil
		}
		v := values.Get(key)
		return &v
	}
	return query.Raw{
		Offset: lookup(query.FieldOffset),
		Max:    lookup(query.FieldMax),
		Sort:   lookup(query.FieldSort),
		Order:  lookup(query.FieldOrder),
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.New(validation.Field(fieldID, "must be a positive integer"))
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.New(validation.Field(fieldBody, "request body is required"))
		}
		return validation.New(validation.Field(fieldBody, "malformed JSON: "+err.Error()))
	}
	if dec.More() {
		return validation.New(validation.Field(fieldBody, "request body must contain a single JSON object"))
	}
	return nil
}
