package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	pgdb "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/db/postgres"
)

// PersonRepository は persons テーブルによる人物ディレクトリの実装です。
type PersonRepository struct {
	pool pgdb.Queryer
}

var _ job.PersonDirectory = (*PersonRepository)(nil)

// NewPersonRepository は PersonRepository を生成します。
func NewPersonRepository(pool pgdb.Queryer) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// CreatePerson は人物を登録します。ID プロバイダからの同期や初期データ投入に利用します。
func (r *PersonRepository) CreatePerson(ctx context.Context, p *job.Person) (*job.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO persons (id, name, role, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, name, role
    `, p.ID, p.Name, string(p.Role), time.Now().UTC())

	created, err := scanPerson(row)
	if err != nil {
		return nil, translateJobPgError(err, "create person")
	}
	return created, nil
}

// FindPerson は ID で人物を取得します。
func (r *PersonRepository) FindPerson(ctx context.Context, id string) (*job.Person, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, role
          FROM persons
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanPerson(row)
	if err != nil {
		return nil, translateJobPgError(err, "find person")
	}
	return found, nil
}

func scanPerson(row pgx.Row) (*job.Person, error) {
	var id, name, role string
	if err := row.Scan(&id, &name, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}

	switch job.Role(role) {
	case job.RoleEmployer, job.RoleEmployee:
	default:
		return nil, errors.Wrapf(job.ErrSchema, "person %s: role %q", id, role)
	}
	return &job.Person{ID: id, Name: name, Role: job.Role(role)}, nil
}
