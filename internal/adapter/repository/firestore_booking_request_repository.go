package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/pkg/errors"
)

type firestoreBookingRequestRepository struct {
	client *firestore.Client
}

func NewFirestoreBookingRequestRepository(client *firestore.Client) repository.BookingRequestRepository {
	return &firestoreBookingRequestRepository{
		client: client,
	}
}

func (r *firestoreBookingRequestRepository) GetByID(ctx context.Context, id string) (*entity.BookingRequest, error) {
	doc, err := r.client.Collection("requests").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Booking request", err)
		}
		return nil, errors.Internal("Failed to get booking request", err)
	}

	var req entity.BookingRequest
	if err := doc.DataTo(&req); err != nil {
		return nil, errors.Internal("Failed to parse booking request", err)
	}
	req.ID = doc.Ref.ID
	return &req, nil
}
