package mysql

import (
	"context"
	"database/sql"
	"time"

	"pricewatch/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

const dateLayout = "2006-01-02"

func (r *Repo) RegisterHotel(ctx context.Context, h domain.Hotel) error {
	_, err := r.db.ExecContext(ctx, upsertHotelSQL, h.Key, h.DisplayName, h.SearchName)
	return err
}

func (r *Repo) AppendObservation(ctx context.Context, o domain.Observation) error {
	_, err := r.db.ExecContext(ctx, insertObservationSQL,
		o.HotelKey,
		o.Name,
		o.Price,
		o.Currency,
		o.CheckIn.Format(dateLayout),
		o.CheckOut.Format(dateLayout),
		o.RecordedAt.UTC(),
	)
	return err
}

func (r *Repo) GetHotel(ctx context.Context, key string) (domain.Hotel, error) {
	row := r.db.QueryRowContext(ctx, getHotelSQL, key)
	var h domain.Hotel
	if err := row.Scan(&h.Key, &h.DisplayName, &h.SearchName, &h.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.Hotel{}, domain.ErrHotelNotFound
		}
		return domain.Hotel{}, err
	}
	return h, nil
}

func (r *Repo) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	rows, err := r.db.QueryContext(ctx, listHotelsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		if err := rows.Scan(&h.Key, &h.DisplayName, &h.SearchName, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repo) History(ctx context.Context, key string, limit int) ([]domain.Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, historySQL, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) LatestObservation(ctx context.Context, key string, checkIn, checkOut time.Time) (domain.Observation, error) {
	var row *sql.Row
	if checkIn.IsZero() || checkOut.IsZero() {
		row = r.db.QueryRowContext(ctx, latestObservationSQL, key)
	} else {
		row = r.db.QueryRowContext(ctx, latestObservationInRangeSQL,
			key, checkIn.Format(dateLayout), checkOut.Format(dateLayout))
	}
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return domain.Observation{}, domain.ErrNoObservation
	}
	if err != nil {
		return domain.Observation{}, err
	}
	return o, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// DSNs use parseTime=true, so DATE and DATETIME columns scan straight
// into time.Time.
func scanObservation(s scanner) (domain.Observation, error) {
	var o domain.Observation
	if err := s.Scan(&o.ID, &o.HotelKey, &o.Name, &o.Price, &o.Currency, &o.CheckIn, &o.CheckOut, &o.RecordedAt); err != nil {
		return domain.Observation{}, err
	}
	return o, nil
}
