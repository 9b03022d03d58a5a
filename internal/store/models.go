package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoActiveModel means the registry holds no model with activo=true.
// Predictions cannot be attributed, so the run must fail; operator
// intervention is required.
var ErrNoActiveModel = errors.New("store: no active prediction model")

// Model is one row of the append-only forecasting model registry.
type Model struct {
	ID          int64
	Name        string
	ValidFrom   *time.Time
	ValidTo     *time.Time
	Accuracy    *float64
	Description *string
	Active      bool
}

const activeModelSQL = `
SELECT id, nombre_modelo, fecha_inicio_produccion, fecha_fin_produccion, roc_index, descripcion, activo
FROM modelos_prediccion
WHERE activo = true
ORDER BY id DESC
LIMIT 1`

// ActiveModel returns the single active model, or ErrNoActiveModel.
func (s *Store) ActiveModel(ctx context.Context) (Model, error) {
	var m Model
	err := s.pool.QueryRow(ctx, activeModelSQL).Scan(
		&m.ID, &m.Name, &m.ValidFrom, &m.ValidTo, &m.Accuracy, &m.Description, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Model{}, ErrNoActiveModel
	}
	if err != nil {
		return Model{}, fmt.Errorf("query active model: %w", err)
	}
	return m, nil
}

const listModelsSQL = `
SELECT id, nombre_modelo, fecha_inicio_produccion, fecha_fin_produccion, roc_index, descripcion, activo
FROM modelos_prediccion
ORDER BY id ASC`

// ListModels returns every registry row, oldest first.
func (s *Store) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := s.pool.Query(ctx, listModelsSQL)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	models := make([]Model, 0)
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Name, &m.ValidFrom, &m.ValidTo, &m.Accuracy, &m.Description, &m.Active); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// ActivateModel switches the active model in one transaction: the currently
// active row gets its validity window closed, every row is deactivated, and
// the target becomes active with its production window opened today. At
// most one row is active at any time.
func (s *Store) ActivateModel(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin model tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
UPDATE modelos_prediccion
SET fecha_fin_produccion = CURRENT_DATE
WHERE activo = true AND id <> $1`, id); err != nil {
		return fmt.Errorf("close previous model window: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE modelos_prediccion SET activo = false WHERE activo = true`); err != nil {
		return fmt.Errorf("deactivate models: %w", err)
	}

	tag, err := tx.Exec(ctx, `
UPDATE modelos_prediccion
SET activo = true,
    fecha_inicio_produccion = CURRENT_DATE,
    fecha_fin_produccion = NULL
WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate model %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activate model %d: no such model", id)
	}

	return tx.Commit(ctx)
}
