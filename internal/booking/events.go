package booking

import (
	"context"
	"errors"

	"ms-booking/internal/models"
)

// Publishers fans an event out to every sink. A failing sink does not stop the others.
type Publishers []EventPublisher

func (p Publishers) PublishBookingCreated(ctx context.Context, b models.Booking) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.PublishBookingCreated(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p Publishers) PublishBookingUpdated(ctx context.Context, b models.Booking) error {
	var errs []error
	for _, pub := range p {
		if pub == nil {
			continue
		}
		if err := pub.PublishBookingUpdated(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
