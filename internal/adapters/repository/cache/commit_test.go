package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	pgdb "github.com/ogurasousui/codex-http-clean-arch/internal/platform/db/postgres"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stagedRepo は書き込みを commit されるまで読み取りに反映しないリポジトリです。
type stagedRepo struct {
	*countingRepo
	staged []func()
}

func (r *stagedRepo) Update(_ context.Context, c *company.Company) (*company.Company, error) {
	if _, ok := r.companies[c.ID]; !ok {
		return nil, company.ErrCompanyNotFound
	}
	stored := *c
	r.staged = append(r.staged, func() { r.companies[c.ID] = &stored })
	return &stored, nil
}

func (r *stagedRepo) MarkDeleted(_ context.Context, id int64, at time.Time) error {
	c, ok := r.companies[id]
	if !ok {
		return company.ErrCompanyNotFound
	}
	r.staged = append(r.staged, func() {
		c.Deleted = true
		c.DeletedAt = &at
	})
	return nil
}

func (r *stagedRepo) apply() {
	for _, fn := range r.staged {
		fn()
	}
	r.staged = nil
}

// interleavingPool は次のコミット直前に一度だけ beforeCommit を実行します。
type interleavingPool struct {
	pgxmock.PgxPoolIface
	beforeCommit func()
}

func (p *interleavingPool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx, err := p.PgxPoolIface.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &interleavingTx{Tx: tx, pool: p}, nil
}

type interleavingTx struct {
	pgx.Tx
	pool *interleavingPool
}

func (tx *interleavingTx) Commit(ctx context.Context) error {
	if fn := tx.pool.beforeCommit; fn != nil {
		tx.pool.beforeCommit = nil
		fn()
	}
	return tx.Tx.Commit(ctx)
}

func newInterleavingService(t *testing.T, inner *stagedRepo) (*company.Service, *CompanyRepository, pgxmock.PgxPoolIface, *interleavingPool) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	repo, _, _ := newCachedRepo(t, inner)
	pool := &interleavingPool{PgxPoolIface: mock}
	svc := company.NewService(repo, nil, pgdb.NewTransactionManager(pool))
	return svc, repo, mock, pool
}

func TestCompanyRepository_ReadBeforeDeleteCommitDoesNotResurrect(t *testing.T) {
	t.Parallel()

	inner := &stagedRepo{countingRepo: newCountingRepo(sampleCompany())}
	svc, repo, mock, pool := newInterleavingService(t, inner)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectRollback()

	pool.beforeCommit = func() {
		// 別リクエストの GET がコミット前の行をキャッシュへ書き戻す。
		found, err := repo.FindByID(ctx, 7)
		require.NoError(t, err)
		require.False(t, found.Deleted)
		inner.apply()
	}

	require.NoError(t, svc.DeleteCompany(ctx, company.DeleteCompanyInput{ID: 7}))

	_, err := svc.GetCompany(ctx, company.GetCompanyInput{ID: 7})
	assert.ErrorIs(t, err, company.ErrCompanyNotFound)
}

func TestCompanyRepository_ReadBeforeUpdateCommitIsDiscarded(t *testing.T) {
	t.Parallel()

	inner := &stagedRepo{countingRepo: newCountingRepo(sampleCompany())}
	svc, repo, mock, pool := newInterleavingService(t, inner)
	ctx := context.Background()

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectCommit()
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectCommit()

	_, err := svc.GetCompany(ctx, company.GetCompanyInput{ID: 7})
	require.NoError(t, err)

	pool.beforeCommit = func() {
		found, err := repo.FindByID(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, "Acme", found.Name)
		inner.apply()
	}

	_, err = svc.UpdateCompany(ctx, company.UpdateCompanyInput{ID: 7, Name: "Acme Renamed", Registration: "ACME-7"})
	require.NoError(t, err)

	found, err := svc.GetCompany(ctx, company.GetCompanyInput{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", found.Name)
	assert.Nil(t, found.Description)
}
