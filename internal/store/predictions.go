package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Prediction is one forecast row attributed to a model.
type Prediction struct {
	Date        time.Time
	StationID   string
	ModelID     int64
	Parameter   string
	Value       float64
	Horizon     int
	GeneratedAt time.Time
	ModelName   string
	Details     []byte
}

const upsertPredictionSQL = `
INSERT INTO predicciones (fecha, estacion_id, modelo_id, parametro, valor, horizonte_dias, detalles, fecha_generacion)
VALUES ($1,$2,$3,$4,$5,$6,$7,CURRENT_TIMESTAMP)
ON CONFLICT (fecha, estacion_id, modelo_id, parametro, horizonte_dias) DO UPDATE
SET valor = EXCLUDED.valor,
    detalles = EXCLUDED.detalles,
    fecha_generacion = CURRENT_TIMESTAMP`

// UpsertPredictions writes both horizon rows of a run in one transaction.
// Reruns for the same date replace the previous values; no duplicates are
// ever created.
func (s *Store) UpsertPredictions(ctx context.Context, preds []Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin predictions tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range preds {
		batch.Queue(upsertPredictionSQL,
			dateArg(p.Date), p.StationID, p.ModelID, p.Parameter, p.Value, p.Horizon, p.Details)
	}

	res := tx.SendBatch(ctx, batch)
	for range preds {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return fmt.Errorf("upsert prediction: %w", err)
		}
	}
	if err := res.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const activePredictionsSQL = `
SELECT DISTINCT ON (p.horizonte_dias)
       p.fecha, p.estacion_id, p.modelo_id, p.parametro, p.valor, p.horizonte_dias,
       p.fecha_generacion, m.nombre_modelo
FROM predicciones p
JOIN modelos_prediccion m ON m.id = p.modelo_id
WHERE p.estacion_id = $1
  AND p.parametro = $2
  AND p.horizonte_dias IN (0, 1)
  AND m.activo = true
ORDER BY p.horizonte_dias ASC, p.fecha_generacion DESC`

// ActivePredictions returns the latest generated horizon-0 and horizon-1
// predictions of the active model, keyed by horizon. Consumers must match
// horizons to calendar days themselves; raw date comparison drifts when a
// run executes near midnight.
func (s *Store) ActivePredictions(ctx context.Context, stationID, parameter string) (map[int]Prediction, error) {
	rows, err := s.pool.Query(ctx, activePredictionsSQL, stationID, parameter)
	if err != nil {
		return nil, fmt.Errorf("query active predictions: %w", err)
	}
	defer rows.Close()

	byHorizon := make(map[int]Prediction, 2)
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.Date, &p.StationID, &p.ModelID, &p.Parameter, &p.Value,
			&p.Horizon, &p.GeneratedAt, &p.ModelName); err != nil {
			return nil, err
		}
		byHorizon[p.Horizon] = p
	}
	return byHorizon, rows.Err()
}
