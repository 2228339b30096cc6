package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/query"
	pgdb "github.com/ogurasousui/codex-http-clean-arch/internal/platform/db/postgres"
)

const companyUniqueViolationCode = "23505"

const companyColumns = `id, name, registration, description, deleted, deleted_at, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ErrInvalidListWindow は一覧取得の limit / offset が不正な場合に返却されます。
var ErrInvalidListWindow = errors.New("postgres: invalid list window")

// companySortColumns は並び替えキーと列名の対応です。ここにないキーは SQL に埋め込みません。
var companySortColumns = map[query.SortKey]string{
	query.SortByID:           "id",
	query.SortByName:         "name",
	query.SortByRegistration: "registration",
}

// CompanyRepository は PostgreSQL を利用した会社永続化の実装です。
type CompanyRepository struct {
	pool pgdb.Queryer
}

// NewCompanyRepository は CompanyRepository を生成します。
func NewCompanyRepository(pool pgdb.Queryer) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

// Create は会社を新規作成します。id はデータベースで採番されます。
func (r *CompanyRepository) Create(ctx context.Context, c *company.Company) (*company.Company, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO companies (name, registration, description, deleted, created_at, updated_at)
        VALUES ($1, $2, $3, FALSE, $4, $5)
        RETURNING `+companyColumns+`
    `, c.Name, c.Registration, nullableString(c.Description), c.CreatedAt, c.UpdatedAt)

	created, err := scanCompany(row)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return created, nil
}

// Update は論理削除されていない会社の可変フィールドを上書きします。
func (r *CompanyRepository) Update(ctx context.Context, c *company.Company) (*company.Company, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE companies
           SET name = $1,
               registration = $2,
               description = $3,
               updated_at = $4
         WHERE id = $5
           AND deleted = FALSE
        RETURNING `+companyColumns+`
    `, c.Name, c.Registration, nullableString(c.Description), c.UpdatedAt, c.ID)

	updated, err := scanCompany(row)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return updated, nil
}

// MarkDeleted は会社を論理削除します。削除済みの行は deleted_at を保持したまま成功します。
func (r *CompanyRepository) MarkDeleted(ctx context.Context, id int64, at time.Time) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE companies
           SET deleted = TRUE,
               deleted_at = COALESCE(deleted_at, $2),
               updated_at = CASE WHEN deleted THEN updated_at ELSE $2 END
         WHERE id = $1
    `, id, at)
	if err != nil {
		return translateCompanyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return company.ErrCompanyNotFound
	}
	return nil
}

// FindByID は ID で論理削除されていない会社を取得します。
func (r *CompanyRepository) FindByID(ctx context.Context, id int64) (*company.Company, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE id = $1
           AND deleted = FALSE
         LIMIT 1
    `, id)

	found, err := scanCompany(row)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return found, nil
}

// FindByRegistration は登録番号で論理削除されていない会社を取得します。
func (r *CompanyRepository) FindByRegistration(ctx context.Context, registration string) (*company.Company, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE registration = $1
           AND deleted = FALSE
         LIMIT 1
    `, registration)

	found, err := scanCompany(row)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return found, nil
}

// List は論理削除されていない会社を指定の並び順で取得します。
func (r *CompanyRepository) List(ctx context.Context, filter company.ListCompaniesFilter) ([]*company.Company, error) {
	if filter.Limit <= 0 || filter.Offset < 0 {
		return nil, ErrInvalidListWindow
	}

	orderBy, err := orderByClause(filter.Sort, filter.Ascending)
	if err != nil {
		return nil, err
	}

	stmt, args, err := psql.
		Select(companyColumns).
		From("companies").
		Where(sq.Eq{"deleted": false}).
		OrderBy(orderBy...).
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list query: %w", err)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	defer rows.Close()

	companies := make([]*company.Company, 0, filter.Limit)
	for rows.Next() {
		found, err := scanCompany(rows)
		if err != nil {
			return nil, translateCompanyPgError(err)
		}
		companies = append(companies, found)
	}

	if err := rows.Err(); err != nil {
		return nil, translateCompanyPgError(err)
	}

	return companies, nil
}

func orderByClause(sort query.SortKey, ascending bool) ([]string, error) {
	column, ok := companySortColumns[sort]
	if !ok {
		return nil, fmt.Errorf("postgres: unsupported sort key %s", strconv.Quote(string(sort)))
	}

	direction := "ASC"
	if !ascending {
		direction = "DESC"
	}

	if column == "id" {
		return []string{"id " + direction}, nil
	}
	return []string{column + " " + direction, "id ASC"}, nil
}

func scanCompany(row pgx.Row) (*company.Company, error) {
	var (
		id                   int64
		name                 string
		registration         string
		description          sql.NullString
		deleted              bool
		deletedAt            sql.NullTime
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(&id, &name, &registration, &description, &deleted, &deletedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, company.ErrCompanyNotFound
		}
		return nil, err
	}

	var descPtr *string
	if description.Valid {
		desc := description.String
		descPtr = &desc
	}

	var deletedAtPtr *time.Time
	if deletedAt.Valid {
		at := deletedAt.Time
		deletedAtPtr = &at
	}

	return &company.Company{
		ID:           id,
		Name:         name,
		Registration: registration,
		Description:  descPtr,
		Deleted:      deleted,
		DeletedAt:    deletedAtPtr,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func translateCompanyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == companyUniqueViolationCode {
			return company.ErrRegistrationAlreadyExists
		}
	}
	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
