package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danthegoodman1/directdict/utils"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

const crdbTryTimeout = 5 * time.Second

type (
	// CRDBMetaStore stores definitions in the dictionary_definitions table created by the migrations package.
	CRDBMetaStore struct {
		pool *pgxpool.Pool
	}
)

func NewCRDBMetaStore(pool *pgxpool.Pool) *CRDBMetaStore {
	return &CRDBMetaStore{pool: pool}
}

func (cms *CRDBMetaStore) GetDefinition(ctx context.Context, fullName string) (Definition, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("dictionary", fullName).Msg("getting definition")
	var def Definition
	err := utils.ReliableExec(ctx, cms.pool, crdbTryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		var raw []byte
		err := conn.QueryRow(ctx, `
			SELECT definition
			FROM dictionary_definitions
			WHERE full_name = $1
		`, fullName).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDefinitionNotFound
		}
		if err != nil {
			return fmt.Errorf("error in QueryRow: %w", err)
		}
		if err = json.Unmarshal(raw, &def); err != nil {
			return utils.PermError(fmt.Sprintf("error in json.Unmarshal: %s", err))
		}
		return nil
	})
	return def, err
}

func (cms *CRDBMetaStore) ListDefinitions(ctx context.Context) ([]Definition, error) {
	var defs []Definition
	err := utils.ReliableExec(ctx, cms.pool, crdbTryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		defs = make([]Definition, 0)
		rows, err := conn.Query(ctx, `
			SELECT full_name, definition
			FROM dictionary_definitions
			ORDER BY full_name
		`)
		if err != nil {
			return fmt.Errorf("error in Query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			var raw []byte
			if err = rows.Scan(&name, &raw); err != nil {
				return fmt.Errorf("error in rows.Scan: %w", err)
			}
			def := Definition{}
			if err = json.Unmarshal(raw, &def); err != nil {
				return utils.PermError(fmt.Sprintf("error unmarshalling definition '%s': %s", name, err))
			}
			defs = append(defs, def)
		}
		return rows.Err()
	})
	return defs, err
}

func (cms *CRDBMetaStore) PutDefinition(ctx context.Context, def Definition) (Definition, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("dictionary", def.FullName()).Msg("putting definition")
	if err := def.Validate(); err != nil {
		return def, err
	}

	err := utils.ReliableExecInTx(ctx, cms.pool, crdbTryTimeout, func(ctx context.Context, tx pgx.Tx) error {
		out := def
		var id string
		var createdAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT id, created_at
			FROM dictionary_definitions
			WHERE full_name = $1
		`, def.FullName()).Scan(&id, &createdAt)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			out.ID = utils.GenRandomShortID()
			out.CreatedAt = time.Now()
		case err != nil:
			return fmt.Errorf("error in QueryRow: %w", err)
		default:
			out.ID = id
			out.CreatedAt = createdAt
		}
		out.UpdatedAt = time.Now()

		raw, err := json.Marshal(out)
		if err != nil {
			return utils.PermError(fmt.Sprintf("error in json.Marshal: %s", err))
		}
		_, err = tx.Exec(ctx, `
			UPSERT INTO dictionary_definitions (id, full_name, definition, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, out.ID, out.FullName(), raw, out.CreatedAt, out.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error in Exec: %w", err)
		}
		def = out
		return nil
	})
	return def, err
}

func (cms *CRDBMetaStore) DeleteDefinition(ctx context.Context, fullName string) error {
	return utils.ReliableExec(ctx, cms.pool, crdbTryTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM dictionary_definitions WHERE full_name = $1`, fullName)
		if err != nil {
			return fmt.Errorf("error in Exec: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDefinitionNotFound
		}
		return nil
	})
}

// Shutdown leaves the pool open, it belongs to the caller.
func (cms *CRDBMetaStore) Shutdown(context.Context) error {
	return nil
}
