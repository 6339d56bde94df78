package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingRepo struct {
	pool *pgxpool.Pool
}

func NewSettingRepo(pool *pgxpool.Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

// Load returns the stored values for the requested keys. Absent keys are
// simply missing from the result map; the resolver applies defaults.
func (r *SettingRepo) Load(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	if r.pool == nil {
		return map[string]string{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT key, value
FROM system_settings
WHERE key = ANY($1)
`, keys)
	if err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan system setting: %w", err)
		}
		values[key] = value
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate system settings: %w", rows.Err())
	}

	return values, nil
}
