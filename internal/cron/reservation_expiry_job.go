package cron

import (
	"context"
	"fmt"

	"github.com/castwell/launch-backend/pkg/logger"
)

type reservationSweeper interface {
	ExpireDue(ctx context.Context) (int64, error)
}

type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations reservationSweeper
}

// NewReservationExpiryJob builds the eager sweep that backs up lazy expiry on reads.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	return &reservationExpiryJob{logg: params.Logger, reservations: params.Reservations}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations reservationSweeper
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.reservations.ExpireDue(ctx)
	if err != nil {
		return fmt.Errorf("expire reservations: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "rows_expired", expired), "expired reservations swept")
	}
	return nil
}
