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

type firestoreReadReceiptRepository struct {
	client *firestore.Client
}

func NewFirestoreReadReceiptRepository(client *firestore.Client) repository.ReadReceiptRepository {
	return &firestoreReadReceiptRepository{
		client: client,
	}
}

func (r *firestoreReadReceiptRepository) receipt(conversationID string, role entity.Role) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(conversationID).Collection(readsCollection).Doc(role.String())
}

// MarkRead stamps lastReadAt with the server clock, the same clock that
// assigns message createdAt, so receipts from concurrent tabs never regress.
func (r *firestoreReadReceiptRepository) MarkRead(ctx context.Context, conversationID string, role entity.Role) error {
	_, err := r.receipt(conversationID, role).Set(ctx, map[string]interface{}{
		"lastReadAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return errors.StoreWriteFailed("write read receipt", err)
	}
	return nil
}

func (r *firestoreReadReceiptRepository) GetReadReceipt(ctx context.Context, conversationID string, role entity.Role) (*entity.ReadReceipt, error) {
	doc, err := r.receipt(conversationID, role).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errors.Internal("Failed to get read receipt", err)
	}
	return receiptFromDoc(doc, conversationID, role)
}

func (r *firestoreReadReceiptRepository) SubscribeReadReceipt(ctx context.Context, conversationID string, role entity.Role) (repository.ReadReceiptFeed, error) {
	it := r.receipt(conversationID, role).Snapshots(ctx)
	return &firestoreReceiptFeed{ctx: ctx, conversationID: conversationID, role: role, it: it}, nil
}

func receiptFromDoc(doc *firestore.DocumentSnapshot, conversationID string, role entity.Role) (*entity.ReadReceipt, error) {
	if !doc.Exists() {
		return nil, nil
	}
	var receipt entity.ReadReceipt
	if err := doc.DataTo(&receipt); err != nil {
		return nil, errors.Internal("Failed to parse read receipt", err)
	}
	receipt.ConversationID = conversationID
	receipt.Role = role
	return &receipt, nil
}

type firestoreReceiptFeed struct {
	ctx            context.Context
	conversationID string
	role           entity.Role
	it             *firestore.DocumentSnapshotIterator
}

func (f *firestoreReceiptFeed) Next() (*entity.ReadReceipt, error) {
	doc, err := f.it.Next()
	if err != nil {
		return nil, feedError(f.ctx, "read receipt", err)
	}
	return receiptFromDoc(doc, f.conversationID, f.role)
}

func (f *firestoreReceiptFeed) Stop() {
	f.it.Stop()
}
