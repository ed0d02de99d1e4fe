package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventreg/internal/students/models"
)

// Postgres reads the students table directly.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres creates a directory over table. The name is quoted as an
// identifier.
func NewPostgres(pool *pgxpool.Pool, table string) *Postgres {
	return &Postgres{pool: pool, table: table}
}

func (p *Postgres) Name() string {
	return "postgres"
}

// Find runs the scoped, ordered, limited ILIKE query.
func (p *Postgres) Find(ctx context.Context, q models.Query) ([]models.Student, error) {
	table := pgx.Identifier{p.table}.Sanitize()
	query := fmt.Sprintf(`
		SELECT id::text, nome_completo, serie, turma, turno
		FROM %s
		WHERE nome_completo ILIKE $1
		  AND turno = $2
		  AND ($3::text = '' OR serie = $3)
		ORDER BY nome_completo ASC
		LIMIT $4`, table)

	rows, err := p.pool.Query(ctx, query, "%"+escapeLike(q.NamePattern)+"%", q.Shift, q.Grade, q.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	students, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Student, error) {
		var s models.Student
		err := row.Scan(&s.ID, &s.FullName, &s.Grade, &s.Section, &s.Shift)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan students: %w", err)
	}
	return students, nil
}

// escapeLike keeps user input from acting as LIKE wildcards.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
