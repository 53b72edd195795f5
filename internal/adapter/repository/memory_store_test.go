package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidyhome/internal/domain/entity"
	domainrepo "tidyhome/internal/domain/repository"
	"tidyhome/pkg/errors"
)

func frozenClock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func appendText(t *testing.T, s *MemoryStore, conv string, sender entity.Role, text string) *entity.Message {
	t.Helper()
	msg := &entity.Message{ConversationID: conv, Sender: sender, SenderName: string(sender), Text: text}
	_, err := s.AppendMessage(context.Background(), msg)
	require.NoError(t, err)
	return msg
}

func TestMemoryStore_AppendAssignsIDAndIncreasingTimestamps(t *testing.T) {
	s := NewMemoryStoreWithClock(frozenClock())

	first := appendText(t, s, "req-1", entity.RoleCustomer, "hi")
	second := appendText(t, s, "req-1", entity.RoleAdmin, "hello")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	messages, err := s.ListMessages(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Text)
	assert.Equal(t, "hello", messages[1].Text)
}

func TestMemoryStore_SubscribeDeliversInitialAndLiveSnapshots(t *testing.T) {
	s := NewMemoryStore()
	appendText(t, s, "req-1", entity.RoleCustomer, "before")

	feed, err := s.SubscribeMessages(context.Background(), "req-1")
	require.NoError(t, err)
	defer feed.Stop()

	initial, err := feed.Next()
	require.NoError(t, err)
	require.Len(t, initial, 1)

	appendText(t, s, "req-1", entity.RoleAdmin, "after")

	live, err := feed.Next()
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, "after", live[1].Text)
}

func TestMemoryStore_StopUnblocksNext(t *testing.T) {
	s := NewMemoryStore()
	feed, err := s.SubscribeMessages(context.Background(), "req-1")
	require.NoError(t, err)

	_, err = feed.Next()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := feed.Next()
		done <- err
	}()

	feed.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, domainrepo.ErrFeedClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Stop")
	}
}

func TestMemoryStore_ContextCancelClosesFeed(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	feed, err := s.SubscribeReadReceipt(ctx, "req-1", entity.RoleAdmin)
	require.NoError(t, err)

	receipt, err := feed.Next()
	require.NoError(t, err)
	assert.Nil(t, receipt)

	cancel()
	_, err = feed.Next()
	assert.ErrorIs(t, err, domainrepo.ErrFeedClosed)
}

func TestMemoryStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementUnread(ctx, "req-1", entity.RoleAdmin, 1))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementUnread(ctx, "req-1", entity.RoleCustomer, 1))
		}()
	}
	wg.Wait()

	counter, err := s.GetUnreadCounter(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), counter.UnreadByAdmin)
	assert.Equal(t, int64(50), counter.UnreadByCustomer)

	require.NoError(t, s.ResetUnread(ctx, "req-1", entity.RoleAdmin))
	counter, err = s.GetUnreadCounter(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counter.UnreadByAdmin)
	assert.Equal(t, int64(50), counter.UnreadByCustomer)
}

func TestMemoryStore_ReadReceiptNeverRegresses(t *testing.T) {
	s := NewMemoryStoreWithClock(frozenClock())
	ctx := context.Background()

	msg := appendText(t, s, "req-1", entity.RoleCustomer, "hi")
	require.NoError(t, s.MarkRead(ctx, "req-1", entity.RoleAdmin))
	first, err := s.GetReadReceipt(ctx, "req-1", entity.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.LastReadAt.After(msg.CreatedAt))

	require.NoError(t, s.MarkRead(ctx, "req-1", entity.RoleAdmin))
	second, err := s.GetReadReceipt(ctx, "req-1", entity.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, second.LastReadAt.After(first.LastReadAt))
}

func TestMemoryStore_BookingRequests(t *testing.T) {
	s := NewMemoryStore()
	s.PutBookingRequest(&entity.BookingRequest{ID: "req-1", UserID: "u-1", CustomerEmail: "dana@example.com"})

	req, err := s.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", req.UserID)

	_, err = s.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestMemoryStore_CanceledWriteFails(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AppendMessage(ctx, &entity.Message{ConversationID: "req-1", Text: "hi", Sender: entity.RoleAdmin})
	assert.True(t, errors.Is(err, errors.CodeStoreWriteFailed))

	messages, err := s.ListMessages(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
