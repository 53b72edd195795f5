package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/pkg/logger"
)

// CountUnread counts the counterpart's messages newer than lastReadAt.
// A nil lastReadAt means the viewer has never read the conversation.
func CountUnread(messages []*entity.Message, viewer entity.Role, lastReadAt *time.Time) int {
	counterpart := viewer.Counterpart()

	count := 0
	for _, m := range messages {
		if m.Sender != counterpart {
			continue
		}
		if lastReadAt == nil || m.CreatedAt.After(*lastReadAt) {
			count++
		}
	}
	return count
}

// UnreadObserver keeps a live unread count for one (conversation, role) from
// the read receipt and the message sequence. It keeps no counter of its own.
type UnreadObserver struct {
	conversationID string
	role           entity.Role
	onChange       func(int)

	mu         sync.Mutex
	lastReadAt *time.Time
	messages   []*entity.Message
	count      int
	notified   bool

	// No count is reported until each side has delivered once or failed.
	receiptReady  bool
	messagesReady bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ObserveUnread starts observing. onChange, if set, is called with every new
// count value, starting with the first one computed from both subscriptions.
func (uc *ChatUseCase) ObserveUnread(ctx context.Context, conversationID string, role entity.Role, onChange func(int)) *UnreadObserver {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	o := &UnreadObserver{
		conversationID: conversationID,
		role:           role,
		onChange:       onChange,
		cancel:         cancel,
	}

	receipts, err := uc.receiptRepo.SubscribeReadReceipt(ctx, conversationID, role)
	if err != nil {
		logger.Warn("ObserveUnread: read receipt subscription for %s/%s failed, treating as never read: %v", conversationID, role, err)
		o.receiptReady = true
	} else {
		o.wg.Add(1)
		go o.watchReceipts(receipts)
	}

	messages, err := uc.conversationRepo.SubscribeMessages(ctx, conversationID)
	if err != nil {
		logger.Warn("ObserveUnread: message subscription for %s failed: %v", conversationID, err)
		o.settleMessages()
	} else {
		o.wg.Add(1)
		go o.watchMessages(messages)
	}

	return o
}

func (o *UnreadObserver) watchReceipts(feed repository.ReadReceiptFeed) {
	defer o.wg.Done()
	defer feed.Stop()

	for {
		receipt, err := feed.Next()
		if err != nil {
			if !errors.Is(err, repository.ErrFeedClosed) {
				logger.Warn("UnreadObserver: read receipt feed for %s/%s failed, treating as never read: %v", o.conversationID, o.role, err)
				o.setLastReadAt(nil)
			}
			return
		}

		if receipt == nil {
			o.setLastReadAt(nil)
			continue
		}
		at := receipt.LastReadAt
		o.setLastReadAt(&at)
	}
}

func (o *UnreadObserver) watchMessages(feed repository.MessageFeed) {
	defer o.wg.Done()
	defer feed.Stop()

	for {
		messages, err := feed.Next()
		if err != nil {
			if !errors.Is(err, repository.ErrFeedClosed) {
				logger.Warn("UnreadObserver: message feed for %s failed, keeping last snapshot: %v", o.conversationID, err)
				o.settleMessages()
			}
			return
		}

		o.mu.Lock()
		o.messages = messages
		o.messagesReady = true
		o.recomputeLocked()
		o.mu.Unlock()
	}
}

func (o *UnreadObserver) setLastReadAt(at *time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lastReadAt = at
	o.receiptReady = true
	o.recomputeLocked()
}

// settleMessages marks the message side as known when it cannot deliver.
func (o *UnreadObserver) settleMessages() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.messagesReady = true
	o.recomputeLocked()
}

func (o *UnreadObserver) recomputeLocked() {
	if !o.receiptReady || !o.messagesReady {
		return
	}
	count := CountUnread(o.messages, o.role, o.lastReadAt)
	if o.notified && count == o.count {
		return
	}
	o.count = count
	o.notified = true
	if o.onChange != nil {
		o.onChange(count)
	}
}

func (o *UnreadObserver) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Close stops both subscriptions and waits for their goroutines.
func (o *UnreadObserver) Close() {
	o.cancel()
	o.wg.Wait()
}
