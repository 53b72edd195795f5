package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/pkg/errors"
)

type receiptKey struct {
	conversationID string
	role           entity.Role
}

// MemoryStore keeps conversations in process. It implements the same contract
// as the Firestore repositories, including live feeds and a store-side clock
// that never goes backwards.
type MemoryStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	lastTick time.Time

	messages map[string][]*entity.Message
	counters map[string]*entity.UnreadCounter
	receipts map[receiptKey]time.Time
	requests map[string]*entity.BookingRequest

	messageFeeds map[string]map[*memoryFeed[[]*entity.Message]]struct{}
	receiptFeeds map[receiptKey]map[*memoryFeed[*entity.ReadReceipt]]struct{}
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(clock func() time.Time) *MemoryStore {
	return &MemoryStore{
		clock:        clock,
		messages:     make(map[string][]*entity.Message),
		counters:     make(map[string]*entity.UnreadCounter),
		receipts:     make(map[receiptKey]time.Time),
		requests:     make(map[string]*entity.BookingRequest),
		messageFeeds: make(map[string]map[*memoryFeed[[]*entity.Message]]struct{}),
		receiptFeeds: make(map[receiptKey]map[*memoryFeed[*entity.ReadReceipt]]struct{}),
	}
}

// tick must be called with mu held.
func (s *MemoryStore) tick() time.Time {
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Microsecond)
	}
	s.lastTick = t
	return t
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *entity.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.StoreWriteFailed("append message", err)
	}

	s.mu.Lock()
	stored := *msg
	stored.ID = uuid.New().String()
	stored.CreatedAt = s.tick()
	s.messages[stored.ConversationID] = append(s.messages[stored.ConversationID], &stored)
	s.publishMessagesLocked(stored.ConversationID)
	s.mu.Unlock()

	msg.ID = stored.ID
	msg.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(conversationID), nil
}

func (s *MemoryStore) SubscribeMessages(ctx context.Context, conversationID string) (repository.MessageFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feeds, ok := s.messageFeeds[conversationID]
	if !ok {
		feeds = make(map[*memoryFeed[[]*entity.Message]]struct{})
		s.messageFeeds[conversationID] = feeds
	}

	var feed *memoryFeed[[]*entity.Message]
	feed = newMemoryFeed[[]*entity.Message](ctx, func() {
		s.mu.Lock()
		delete(feeds, feed)
		s.mu.Unlock()
	})
	feeds[feed] = struct{}{}
	feed.publish(s.snapshotLocked(conversationID))
	return feed, nil
}

func (s *MemoryStore) IncrementUnread(ctx context.Context, conversationID string, role entity.Role, n int64) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreWriteFailed("increment unread counter", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.counterLocked(conversationID)
	switch role {
	case entity.RoleAdmin:
		counter.UnreadByAdmin += n
	case entity.RoleCustomer:
		counter.UnreadByCustomer += n
	}
	return nil
}

func (s *MemoryStore) ResetUnread(ctx context.Context, conversationID string, role entity.Role) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreWriteFailed("reset unread counter", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.counterLocked(conversationID)
	switch role {
	case entity.RoleAdmin:
		counter.UnreadByAdmin = 0
	case entity.RoleCustomer:
		counter.UnreadByCustomer = 0
	}
	return nil
}

func (s *MemoryStore) GetUnreadCounter(ctx context.Context, conversationID string) (*entity.UnreadCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter := *s.counterLocked(conversationID)
	return &counter, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, conversationID string, role entity.Role) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreWriteFailed("write read receipt", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := receiptKey{conversationID: conversationID, role: role}
	s.receipts[key] = s.tick()
	receipt := s.receiptLocked(key)
	for feed := range s.receiptFeeds[key] {
		feed.publish(receipt)
	}
	return nil
}

func (s *MemoryStore) GetReadReceipt(ctx context.Context, conversationID string, role entity.Role) (*entity.ReadReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiptLocked(receiptKey{conversationID: conversationID, role: role}), nil
}

func (s *MemoryStore) SubscribeReadReceipt(ctx context.Context, conversationID string, role entity.Role) (repository.ReadReceiptFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receiptKey{conversationID: conversationID, role: role}
	feeds, ok := s.receiptFeeds[key]
	if !ok {
		feeds = make(map[*memoryFeed[*entity.ReadReceipt]]struct{})
		s.receiptFeeds[key] = feeds
	}

	var feed *memoryFeed[*entity.ReadReceipt]
	feed = newMemoryFeed[*entity.ReadReceipt](ctx, func() {
		s.mu.Lock()
		delete(feeds, feed)
		s.mu.Unlock()
	})
	feeds[feed] = struct{}{}
	feed.publish(s.receiptLocked(key))
	return feed, nil
}

// PutBookingRequest seeds a booking request.
func (s *MemoryStore) PutBookingRequest(req *entity.BookingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *req
	s.requests[req.ID] = &stored
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*entity.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFound("Booking request", nil)
	}
	stored := *req
	return &stored, nil
}

func (s *MemoryStore) snapshotLocked(conversationID string) []*entity.Message {
	stored := s.messages[conversationID]
	out := make([]*entity.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) publishMessagesLocked(conversationID string) {
	for feed := range s.messageFeeds[conversationID] {
		feed.publish(s.snapshotLocked(conversationID))
	}
}

func (s *MemoryStore) counterLocked(conversationID string) *entity.UnreadCounter {
	counter, ok := s.counters[conversationID]
	if !ok {
		counter = &entity.UnreadCounter{ConversationID: conversationID}
		s.counters[conversationID] = counter
	}
	return counter
}

func (s *MemoryStore) receiptLocked(key receiptKey) *entity.ReadReceipt {
	at, ok := s.receipts[key]
	if !ok {
		return nil
	}
	return &entity.ReadReceipt{
		ConversationID: key.conversationID,
		Role:           key.role,
		LastReadAt:     at,
	}
}

// memoryFeed hands out the latest published value; intermediate values a slow
// reader missed are dropped, matching how snapshot listeners coalesce.
type memoryFeed[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	onStop   func()
}

func newMemoryFeed[T any](ctx context.Context, onStop func()) *memoryFeed[T] {
	f := &memoryFeed[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		onStop: onStop,
	}
	go func() {
		select {
		case <-ctx.Done():
			f.Stop()
		case <-f.done:
		}
	}()
	return f
}

func (f *memoryFeed[T]) publish(v T) {
	f.mu.Lock()
	f.value = v
	f.pending = true
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *memoryFeed[T]) Next() (T, error) {
	var zero T
	for {
		select {
		case <-f.done:
			return zero, repository.ErrFeedClosed
		default:
		}

		f.mu.Lock()
		if f.pending {
			v := f.value
			f.value = zero
			f.pending = false
			f.mu.Unlock()
			return v, nil
		}
		f.mu.Unlock()

		select {
		case <-f.notify:
		case <-f.done:
			return zero, repository.ErrFeedClosed
		}
	}
}

func (f *memoryFeed[T]) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		if f.onStop != nil {
			go f.onStop()
		}
	})
}
