package repository

import (
	"context"

	"tidyhome/internal/domain/entity"
)

type BookingRequestRepository interface {
	GetByID(ctx context.Context, id string) (*entity.BookingRequest, error)
}
