package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	pgdb "github.com/ogurasousui/codex-http-clean-arch/internal/platform/db/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "companies:v1:"

const (
	lookupHit   = "hit"
	lookupMiss  = "miss"
	lookupError = "error"
)

// LookupRecorder はキャッシュ参照結果の記録先です。
type LookupRecorder interface {
	CacheLookup(result string)
}

// CompanyRepository は FindByID の結果を Redis にキャッシュする company.Repository のデコレーターです。
// 更新と論理削除の後は該当キーを即座に破棄し、トランザクション内であればコミット後にも再度破棄します。
// Redis の障害時は内側のリポジトリへそのまま委譲します。
type CompanyRepository struct {
	next     company.Repository
	client   redis.UniversalClient
	ttl      time.Duration
	logger   *zap.Logger
	recorder LookupRecorder
}

// Option は CompanyRepository の任意設定です。
type Option func(*CompanyRepository)

// WithLogger はログ出力先を設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(r *CompanyRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder はキャッシュ参照結果の記録先を設定します。
func WithRecorder(recorder LookupRecorder) Option {
	return func(r *CompanyRepository) {
		r.recorder = recorder
	}
}

// NewCompanyRepository は CompanyRepository を生成します。
func NewCompanyRepository(next company.Repository, client redis.UniversalClient, ttl time.Duration, opts ...Option) *CompanyRepository {
	r := &CompanyRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type cachedCompany struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Registration string    `json:"registration"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func companyKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Create は内側のリポジトリへ委譲します。
func (r *CompanyRepository) Create(ctx context.Context, c *company.Company) (*company.Company, error) {
	return r.next.Create(ctx, c)
}

// Update は内側のリポジトリで更新し、キャッシュを破棄します。
func (r *CompanyRepository) Update(ctx context.Context, c *company.Company) (*company.Company, error) {
	updated, err := r.next.Update(ctx, c)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, c.ID)
	return updated, nil
}

// MarkDeleted は内側のリポジトリで論理削除し、キャッシュを破棄します。
func (r *CompanyRepository) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	if err := r.next.MarkDeleted(ctx, id, at); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// FindByID はキャッシュを参照し、なければ内側のリポジトリから取得して格納します。
func (r *CompanyRepository) FindByID(ctx context.Context, id int64) (*company.Company, error) {
	key := companyKey(id)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedCompany
		if err := json.Unmarshal(raw, &cached); err == nil {
			r.record(lookupHit)
			return cached.toCompany(), nil
		}
		r.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		r.record(lookupError)
	case errors.Is(err, redis.Nil):
		r.record(lookupMiss)
	default:
		r.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		r.record(lookupError)
	}

	found, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store(ctx, found)
	return found, nil
}

// FindByRegistration は内側のリポジトリへ委譲します。
func (r *CompanyRepository) FindByRegistration(ctx context.Context, registration string) (*company.Company, error) {
	return r.next.FindByRegistration(ctx, registration)
}

// List は内側のリポジトリへ委譲します。
func (r *CompanyRepository) List(ctx context.Context, filter company.ListCompaniesFilter) ([]*company.Company, error) {
	return r.next.List(ctx, filter)
}

func (r *CompanyRepository) store(ctx context.Context, c *company.Company) {
	if c == nil || c.Deleted {
		return
	}

	payload, err := json.Marshal(fromCompany(c))
	if err != nil {
		r.logger.Warn("cache encode failed", zap.Int64("company_id", c.ID), zap.Error(err))
		return
	}

	if err := r.client.Set(ctx, companyKey(c.ID), payload, r.ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", zap.Int64("company_id", c.ID), zap.Error(err))
	}
}

// invalidate はキーを即座に破棄し、コミット後にも再度破棄します。
func (r *CompanyRepository) invalidate(ctx context.Context, id int64) {
	r.evict(ctx, id)
	pgdb.AfterCommit(ctx, func(ctx context.Context) {
		r.evict(ctx, id)
	})
}

func (r *CompanyRepository) evict(ctx context.Context, id int64) {
	if err := r.client.Del(ctx, companyKey(id)).Err(); err != nil {
		r.logger.Warn("cache evict failed", zap.Int64("company_id", id), zap.Error(err))
	}
}

func (r *CompanyRepository) record(result string) {
	if r.recorder != nil {
		r.recorder.CacheLookup(result)
	}
}

func fromCompany(c *company.Company) cachedCompany {
	return cachedCompany{
		ID:           c.ID,
		Name:         c.Name,
		Registration: c.Registration,
		Description:  c.Description,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (c cachedCompany) toCompany() *company.Company {
	return &company.Company{
		ID:           c.ID,
		Name:         c.Name,
		Registration: c.Registration,
		Description:  c.Description,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
