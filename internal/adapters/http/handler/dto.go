package handler

import (
	"time"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
)

type companyResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Registration string    `json:"registration"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type createCompanyRequest struct {
	Name         string  `json:"name"`
	Registration string  `json:"registration"`
	Description  *string `json:"description"`
}

type updateCompanyRequest struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Registration string  `json:"registration"`
	Description  *string `json:"description"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:           c.ID,
		Name:         c.Name,
		Registration: c.Registration,
		Description:  c.Description,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toCompanyResponses(companies []*company.Company) []companyResponse {
	out := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyResponse(c))
	}
	return out
}
