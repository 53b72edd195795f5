package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/pkg/errors"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
	readsCollection    = "reads"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) chat(conversationID string) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(conversationID)
}

func (r *firestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.chat(conversationID).Collection(messagesCollection)
}

func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, msg *entity.Message) (string, error) {
	// A zero createdAt lets the serverTimestamp tag assign the store time.
	toStore := *msg
	toStore.CreatedAt = time.Time{}

	ref, wr, err := r.messages(msg.ConversationID).Add(ctx, toStore)
	if err != nil {
		return "", errors.StoreWriteFailed("append message", err)
	}
	msg.ID = ref.ID
	// The serverTimestamp transform writes the commit time.
	msg.CreatedAt = wr.UpdateTime

	return ref.ID, nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	iter := r.messages(conversationID).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		message, err := messageFromDoc(doc)
		if err != nil {
			log.Printf("Error parsing message %s in conversation %s: %v", doc.Ref.ID, conversationID, err)
			continue
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (r *firestoreConversationRepository) SubscribeMessages(ctx context.Context, conversationID string) (repository.MessageFeed, error) {
	it := r.messages(conversationID).OrderBy("createdAt", firestore.Asc).Snapshots(ctx)
	return &firestoreMessageFeed{ctx: ctx, conversationID: conversationID, it: it}, nil
}

func (r *firestoreConversationRepository) IncrementUnread(ctx context.Context, conversationID string, role entity.Role, n int64) error {
	_, err := r.chat(conversationID).Set(ctx, map[string]interface{}{
		role.UnreadField(): firestore.Increment(n),
	}, firestore.MergeAll)
	if err != nil {
		return errors.StoreWriteFailed("increment unread counter", err)
	}
	return nil
}

func (r *firestoreConversationRepository) ResetUnread(ctx context.Context, conversationID string, role entity.Role) error {
	_, err := r.chat(conversationID).Set(ctx, map[string]interface{}{
		role.UnreadField(): 0,
	}, firestore.MergeAll)
	if err != nil {
		return errors.StoreWriteFailed("reset unread counter", err)
	}
	return nil
}

func (r *firestoreConversationRepository) GetUnreadCounter(ctx context.Context, conversationID string) (*entity.UnreadCounter, error) {
	counter := &entity.UnreadCounter{ConversationID: conversationID}

	doc, err := r.chat(conversationID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return counter, nil
		}
		return nil, errors.Internal("Failed to get unread counter", err)
	}

	if err := doc.DataTo(counter); err != nil {
		return nil, errors.Internal("Failed to parse unread counter", err)
	}
	counter.ConversationID = conversationID
	return counter, nil
}

func messageFromDoc(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, err
	}
	message.ID = doc.Ref.ID
	return &message, nil
}

type firestoreMessageFeed struct {
	ctx            context.Context
	conversationID string
	it             *firestore.QuerySnapshotIterator
}

func (f *firestoreMessageFeed) Next() ([]*entity.Message, error) {
	snap, err := f.it.Next()
	if err != nil {
		return nil, feedError(f.ctx, "messages", err)
	}

	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, feedError(f.ctx, "messages", err)
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		message, err := messageFromDoc(doc)
		if err != nil {
			log.Printf("Error parsing message %s in conversation %s: %v", doc.Ref.ID, f.conversationID, err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (f *firestoreMessageFeed) Stop() {
	f.it.Stop()
}

// feedError maps the end of a snapshot listener to ErrFeedClosed.
func feedError(ctx context.Context, subscription string, err error) error {
	if err == iterator.Done || status.Code(err) == codes.Canceled || ctx.Err() != nil {
		return repository.ErrFeedClosed
	}
	return errors.StoreSubscribeFailed(subscription, err)
}
