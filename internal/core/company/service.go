package company

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/query"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/validation"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const fieldID = "id"

var registrationPattern = regexp.MustCompile(`^[0-9A-Za-z./-]+$`)

var validate = validation.NewValidator(validation.Rule{
	Tag:     "registration",
	Message: "must contain only letters, digits, '.', '/' or '-'",
	Check:   registrationPattern.MatchString,
})

// companyFields は作成・更新で受け付ける可変フィールドの制約です。
type companyFields struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Registration string  `json:"registration" validate:"required,max=32,registration"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

// Service は会社に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	clock  Clock
	tx     TransactionManager
	paging query.Paging
}

// UseCase は会社ユースケースの公開インターフェースです。
type UseCase interface {
	CreateCompany(ctx context.Context, in CreateCompanyInput) (*Company, error)
	GetCompany(ctx context.Context, in GetCompanyInput) (*Company, error)
	ListCompanies(ctx context.Context, in ListCompaniesInput) (*ListCompaniesResult, error)
	UpdateCompany(ctx context.Context, in UpdateCompanyInput) (*Company, error)
	DeleteCompany(ctx context.Context, in DeleteCompanyInput) error
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithPageSizes は一覧取得の既定ページサイズと上限を設定します。
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *Service) {
		s.paging = query.Paging{DefaultSize: defaultSize, MaxSize: maxSize}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{repo: repo, clock: clock, tx: tx, paging: query.DefaultPaging()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCompanyInput は会社作成時の入力です。
type CreateCompanyInput struct {
	Name         string
	Registration string
	Description  *string
}

// UpdateCompanyInput は会社更新時の入力です。
// 更新は全置換で、すべての可変フィールドが入力値で上書きされます。
type UpdateCompanyInput struct {
	ID           int64
	Name         string
	Registration string
	Description  *string
}

// DeleteCompanyInput は会社削除時の入力です。
type DeleteCompanyInput struct {
	ID int64
}

// GetCompanyInput は会社取得時の入力です。
type GetCompanyInput struct {
	ID int64
}

// ListCompaniesInput は一覧取得時の入力です。
type ListCompaniesInput struct {
	Args query.Arguments
}

// ListCompaniesResult は一覧取得結果を表します。
// Window には既定値適用後の範囲と並び順が入ります。
type ListCompaniesResult struct {
	Companies []*Company
	Window    query.Window
	HasMore   bool
}

// NextOffset は次ページの offset を返します。次ページがない場合は false です。
func (r *ListCompaniesResult) NextOffset() (int, bool) {
	if r == nil || !r.HasMore {
		return 0, false
	}
	return r.Window.Offset + r.Window.Limit, true
}

// CreateCompany は新しい会社を作成します。
func (s *Service) CreateCompany(ctx context.Context, in CreateCompanyInput) (*Company, error) {
	fields, err := normalizeFields(in.Name, in.Registration, in.Description)
	if err != nil {
		return nil, err
	}

	var created *Company
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureRegistrationAvailable(txCtx, fields.Registration, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		company := &Company{
			Name:         fields.Name,
			Registration: fields.Registration,
			Description:  fields.Description,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		result, err := s.repo.Create(txCtx, company)
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateCompany は会社情報を全置換で更新します。論理削除の状態は変更しません。
func (s *Service) UpdateCompany(ctx context.Context, in UpdateCompanyInput) (*Company, error) {
	if err := validateID(in.ID); err != nil {
		return nil, err
	}

	fields, err := normalizeFields(in.Name, in.Registration, in.Description)
	if err != nil {
		return nil, err
	}

	var updated *Company
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		if fields.Registration != existing.Registration {
			if err := s.ensureRegistrationAvailable(txCtx, fields.Registration, existing.ID); err != nil {
				return err
			}
		}

		existing.Name = fields.Name
		existing.Registration = fields.Registration
		existing.Description = fields.Description
		existing.UpdatedAt = s.clock.Now()

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteCompany は会社を論理削除します。
// 削除済みの会社に対する再削除は何もせず成功します。
func (s *Service) DeleteCompany(ctx context.Context, in DeleteCompanyInput) error {
	if err := validateID(in.ID); err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.MarkDeleted(txCtx, in.ID, s.clock.Now())
	})
}

// GetCompany は ID で会社を取得します。
func (s *Service) GetCompany(ctx context.Context, in GetCompanyInput) (*Company, error) {
	if err := validateID(in.ID); err != nil {
		return nil, err
	}

	var company *Company
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}
		company = result
		return nil
	}); err != nil {
		return nil, err
	}

	return company, nil
}

// ListCompanies は会社の一覧を取得します。
// max は上限値で切り詰められ、結果は並び替えキーと id の昇順で一意に順序付けられます。
func (s *Service) ListCompanies(ctx context.Context, in ListCompaniesInput) (*ListCompaniesResult, error) {
	if err := in.Args.Validate(); err != nil {
		return nil, err
	}

	window := s.paging.Resolve(in.Args)

	var companies []*Company
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.List(txCtx, ListCompaniesFilter{
			Limit:     window.Limit + 1,
			Offset:    window.Offset,
			Sort:      window.Sort,
			Ascending: window.Ascending,
		})
		if err != nil {
			return err
		}
		companies = result
		return nil
	}); err != nil {
		return nil, err
	}

	hasMore := len(companies) > window.Limit
	if hasMore {
		companies = companies[:window.Limit]
	}
	if companies == nil {
		companies = []*Company{}
	}

	return &ListCompaniesResult{
		Companies: companies,
		Window:    window,
		HasMore:   hasMore,
	}, nil
}

func (s *Service) ensureRegistrationAvailable(ctx context.Context, registration string, selfID int64) error {
	company, err := s.repo.FindByRegistration(ctx, registration)
	if err != nil && !errors.Is(err, ErrCompanyNotFound) {
		return err
	}
	if company != nil && company.ID != selfID {
		return ErrRegistrationAlreadyExists
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return validation.New(validation.Field(fieldID, "must be a positive integer"))
	}
	return nil
}

func normalizeFields(name, registration string, description *string) (companyFields, error) {
	fields := companyFields{
		Name:         strings.TrimSpace(name),
		Registration: strings.TrimSpace(registration),
		Description:  normalizeDescription(description),
	}
	if err := validate.Struct(fields); err != nil {
		return companyFields{}, err
	}
	return fields, nil
}

func normalizeDescription(raw *string) *string {
	if raw == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}

	desc := trimmed
	return &desc
}
