package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// 再試行すれば成功し得る PostgreSQL のエラーコードです。
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TransactionManager は pgx を用いたトランザクション制御を提供します。
// 読み書きトランザクションは直列化失敗やデッドロックの際に設定回数まで再実行されます。
type TransactionManager struct {
	pool      txStarter
	isolation pgx.TxIsoLevel
	retries   int
	logger    *zap.Logger
}

// TxOption は TransactionManager の振る舞いを変更します。
type TxOption func(*TransactionManager)

// WithIsolationLevel は読み書きトランザクションの分離レベルを指定します。
func WithIsolationLevel(level pgx.TxIsoLevel) TxOption {
	return func(m *TransactionManager) {
		m.isolation = level
	}
}

// WithRetries は再試行可能なエラーで読み書きトランザクションをやり直す回数を指定します。
func WithRetries(n int) TxOption {
	return func(m *TransactionManager) {
		if n >= 0 {
			m.retries = n
		}
	}
}

// WithTxLogger はロールバック失敗や再試行を記録するロガーを指定します。
func WithTxLogger(logger *zap.Logger) TxOption {
	return func(m *TransactionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewTransactionManager は TransactionManager を生成します。pool が nil の場合は nil を返します。
func NewTransactionManager(pool txStarter, opts ...TxOption) *TransactionManager {
	if pool == nil {
		return nil
	}
	m := &TransactionManager{pool: pool, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithinReadOnly は読み取り専用トランザクションを開始し、fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithinReadWrite は読み書きトランザクションを開始し、fn を実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}

	opts := pgx.TxOptions{AccessMode: pgx.ReadWrite, IsoLevel: m.isolation}
	var err error
	for attempt := 0; ; attempt++ {
		err = m.within(ctx, opts, fn)
		if err == nil || attempt >= m.retries || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		m.logger.Warn("retrying transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func (m *TransactionManager) within(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}

	// 既にトランザクション内であれば外側のトランザクションに参加する。
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	hookCtx, hooks := contextWithCommitHooks(ctx)
	if err := m.run(hookCtx, tx, fn); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Error("rollback failed", zap.Error(rbErr))
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	hooks.run(context.WithoutCancel(ctx))
	return nil
}

// run は fn を実行し、panic した場合はロールバックしてから panic を伝播させます。
func (m *TransactionManager) run(ctx context.Context, tx pgx.Tx, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()
	return fn(contextWithTx(ctx, tx))
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}
