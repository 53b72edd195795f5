package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "tidyhome/internal/adapter/repository"
	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/service"
	"tidyhome/pkg/config"
	apperrors "tidyhome/pkg/errors"
)

const testConversation = "req-1"

var (
	adminViewer    = entity.Viewer{UserID: "admin-1", Role: entity.RoleAdmin, DisplayName: "TidyHome Team", Email: "ops@tidyhome.test"}
	customerViewer = entity.Viewer{UserID: "cust-1", Role: entity.RoleCustomer, DisplayName: "Jane Doe", Email: "jane@example.com"}
)

func testTimings() config.ChatConfig {
	return config.ChatConfig{
		HighlightDuration:    40 * time.Millisecond,
		TypingPulseDuration:  60 * time.Millisecond,
		ToastVisibleDuration: 80 * time.Millisecond,
		ToastExitDuration:    30 * time.Millisecond,
		SideEffectTimeout:    time.Second,
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

type notification struct {
	recipient entity.Role
	conv      service.ConversationContext
	text      string
}

func (n *recordingNotifier) NotifyCounterpartOfMessage(ctx context.Context, recipient entity.Role, conv service.ConversationContext, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{recipient: recipient, conv: conv, text: text})
	return nil
}

func (n *recordingNotifier) Calls() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

func newTestStore() *memstore.MemoryStore {
	store := memstore.NewMemoryStore()
	store.PutBookingRequest(&entity.BookingRequest{
		ID:            testConversation,
		UserID:        customerViewer.UserID,
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
	})
	return store
}

func newTestUseCase(store *memstore.MemoryStore) (*ChatUseCase, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewChatUseCase(store, store, store, notifier, nil, testTimings()), notifier
}

// newDetachedSession builds a session without a store subscription so tests
// can feed snapshots directly.
func newDetachedSession(uc *ChatUseCase, viewer entity.Viewer) *ChatSession {
	s := newChatSession(uc, viewer, testConversation)
	s.state = StateSubscribing
	s.cancel = func() {}
	close(s.done)
	return s
}

func msgAt(id string, sender entity.Role, sec int) *entity.Message {
	return &entity.Message{
		ID:             id,
		ConversationID: testConversation,
		Text:           "message " + id,
		Sender:         sender,
		SenderName:     string(sender),
		CreatedAt:      time.Unix(int64(sec), 0).UTC(),
	}
}

func drainEvents(s *ChatSession) []SessionEvent {
	var out []SessionEvent
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countEvents(events []SessionEvent, eventType EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func TestChatSession_InitialLoadIsSilent(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())

	for _, n := range []int{0, 1, 7} {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			s := newDetachedSession(uc, adminViewer)
			defer s.Close()

			var history []*entity.Message
			for i := 0; i < n; i++ {
				sender := entity.RoleCustomer
				if i%2 == 1 {
					sender = entity.RoleAdmin
				}
				history = append(history, msgAt(fmt.Sprintf("m%d", i), sender, i+1))
			}

			s.handleSnapshot(history)

			state := s.State()
			assert.Equal(t, StateLive, state.State)
			assert.Len(t, state.Messages, n)
			assert.Empty(t, state.Highlighted)
			assert.Empty(t, state.Toasts)
			assert.False(t, state.Typing)

			events := drainEvents(s)
			require.Len(t, events, 1)
			assert.Equal(t, EventMessages, events[0].Type)
		})
	}
}

func TestChatSession_DetectsNewMessagesBySet(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())

	t.Run("appended message", func(t *testing.T) {
		s := newDetachedSession(uc, adminViewer)
		defer s.Close()

		a, b, c := msgAt("A", entity.RoleCustomer, 1), msgAt("B", entity.RoleCustomer, 2), msgAt("C", entity.RoleCustomer, 3)
		s.handleSnapshot([]*entity.Message{a, b})
		s.handleSnapshot([]*entity.Message{a, b, c})

		state := s.State()
		assert.Equal(t, []string{"C"}, state.Highlighted)
		require.Len(t, state.Toasts, 1)
		assert.Equal(t, "C", state.Toasts[0].MessageID)
	})

	t.Run("reordered same set", func(t *testing.T) {
		s := newDetachedSession(uc, adminViewer)
		defer s.Close()

		a, b, c := msgAt("A", entity.RoleCustomer, 1), msgAt("B", entity.RoleCustomer, 2), msgAt("C", entity.RoleCustomer, 3)
		s.handleSnapshot([]*entity.Message{a, b, c})
		s.handleSnapshot([]*entity.Message{a, c, b})

		state := s.State()
		assert.Empty(t, state.Highlighted)
		assert.Empty(t, state.Toasts)
		assert.False(t, state.Typing)
		assert.Equal(t, []string{"A", "B", "C"}, messageIDs(state.Messages))
	})
}

func messageIDs(messages []*entity.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestChatSession_RoutesOwnAndCounterpartArrivals(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := newDetachedSession(uc, adminViewer)
	defer s.Close()

	s.handleSnapshot(nil)
	drainEvents(s)

	own := msgAt("own", entity.RoleAdmin, 1)
	s.handleSnapshot([]*entity.Message{own})

	state := s.State()
	assert.Equal(t, []string{"own"}, state.Highlighted)
	assert.Empty(t, state.Toasts)
	assert.False(t, state.Typing)
	assert.Zero(t, countEvents(drainEvents(s), EventTyping))

	other := msgAt("other", entity.RoleCustomer, 2)
	s.handleSnapshot([]*entity.Message{own, other})

	state = s.State()
	require.Len(t, state.Toasts, 1)
	assert.Equal(t, "other", state.Toasts[0].MessageID)
	assert.Equal(t, other.Text, state.Toasts[0].Text)
	assert.True(t, state.Typing)

	events := drainEvents(s)
	assert.Equal(t, 1, countEvents(events, EventToastAdded))
	assert.Equal(t, 1, countEvents(events, EventTyping))
}

func TestChatSession_HighlightClearsOnItsOwn(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := newDetachedSession(uc, customerViewer)
	defer s.Close()

	s.handleSnapshot(nil)
	s.handleSnapshot([]*entity.Message{msgAt("A", entity.RoleAdmin, 1)})

	assert.Equal(t, []string{"A"}, s.State().Highlighted)
	assert.Eventually(t, func() bool {
		return len(s.State().Highlighted) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return !s.State().Typing
	}, time.Second, 5*time.Millisecond)
}

func TestChatSession_ToastLifecycle(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := newDetachedSession(uc, customerViewer)
	defer s.Close()

	s.handleSnapshot(nil)
	s.handleSnapshot([]*entity.Message{msgAt("A", entity.RoleAdmin, 1)})
	require.Len(t, s.State().Toasts, 1)

	assert.Eventually(t, func() bool {
		toasts := s.State().Toasts
		return len(toasts) == 1 && toasts[0].Leaving
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(s.State().Toasts) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestChatSession_DismissToast(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := newDetachedSession(uc, customerViewer)
	defer s.Close()

	s.handleSnapshot(nil)
	s.handleSnapshot([]*entity.Message{msgAt("A", entity.RoleAdmin, 1), msgAt("B", entity.RoleAdmin, 2)})

	toasts := s.State().Toasts
	require.Len(t, toasts, 2)

	assert.True(t, s.DismissToast(toasts[0].ID))
	assert.False(t, s.DismissToast(toasts[0].ID))
	assert.False(t, s.DismissToast("missing"))

	remaining := s.State().Toasts
	require.Len(t, remaining, 1)
	assert.Equal(t, toasts[1].ID, remaining[0].ID)
}

func TestChatSession_CloseStopsTimers(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := newDetachedSession(uc, adminViewer)

	s.handleSnapshot(nil)
	s.handleSnapshot([]*entity.Message{msgAt("A", entity.RoleCustomer, 1)})
	require.True(t, s.State().Typing)

	s.Close()
	s.Close()

	// Outlast every timer; a late callback emitting on the closed channel would panic.
	time.Sleep(200 * time.Millisecond)

	state := s.State()
	assert.Equal(t, StateUnsubscribed, state.State)
	assert.Empty(t, state.Highlighted)
	assert.Empty(t, state.Toasts)
	assert.Empty(t, state.Messages)
	assert.False(t, state.Typing)

	s.handleSnapshot([]*entity.Message{msgAt("B", entity.RoleCustomer, 2)})
	assert.Empty(t, s.State().Messages)
	assert.False(t, s.DismissToast("anything"))

	_, err := s.Send(context.Background(), "hello")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

type blockingAppendStore struct {
	*memstore.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingAppendStore) AppendMessage(ctx context.Context, msg *entity.Message) (string, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.MemoryStore.AppendMessage(ctx, msg)
}

func TestChatSession_SendIsSerialized(t *testing.T) {
	store := &blockingAppendStore{
		MemoryStore: newTestStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	uc := NewChatUseCase(store, store, store, nil, nil, testTimings())
	s := newDetachedSession(uc, adminViewer)
	defer s.Close()

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		firstErr <- err
	}()
	<-store.entered

	_, err := s.Send(context.Background(), "second")
	assert.True(t, apperrors.Is(err, apperrors.CodeAlreadySending))
	assert.True(t, s.State().Sending)

	close(store.release)
	require.NoError(t, <-firstErr)
	assert.False(t, s.State().Sending)

	messages, err := store.ListMessages(context.Background(), testConversation)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "first", messages[0].Text)
	require.NoError(t, uc.WaitForBackground(context.Background()))
}

func TestChatSession_RejectsEmptyText(t *testing.T) {
	store := newTestStore()
	uc, _ := newTestUseCase(store)
	s := newDetachedSession(uc, customerViewer)
	defer s.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Send(context.Background(), text)
		assert.True(t, apperrors.Is(err, apperrors.CodeEmptyMessage), "text %q", text)
	}

	messages, err := store.ListMessages(context.Background(), testConversation)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.False(t, s.State().Sending)
}

func TestOpenSession_LiveConversation(t *testing.T) {
	store := newTestStore()
	uc, _ := newTestUseCase(store)
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, SendMessageInput{ConversationID: testConversation, Viewer: customerViewer, Text: "before mount"})
	require.NoError(t, err)

	s := uc.OpenSession(ctx, adminViewer, testConversation)
	defer s.Close()

	assert.Eventually(t, func() bool {
		state := s.State()
		return state.State == StateLive && len(state.Messages) == 1 && state.Unread == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.State().Toasts)

	_, err = uc.SendMessage(ctx, SendMessageInput{ConversationID: testConversation, Viewer: customerViewer, Text: "after mount"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		state := s.State()
		return len(state.Messages) == 2 && len(state.Toasts) == 1 && state.Unread == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.MarkRead(ctx))
	assert.Eventually(t, func() bool {
		return s.State().Unread == 0
	}, time.Second, 5*time.Millisecond)

	_, err = s.Send(ctx, "  on it  ")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		state := s.State()
		return len(state.Messages) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "on it", s.State().Messages[2].Text)
}

func TestOpenSession_CloseEndsEventStream(t *testing.T) {
	uc, _ := newTestUseCase(newTestStore())
	s := uc.OpenSession(context.Background(), customerViewer, testConversation)

	assert.Eventually(t, func() bool {
		return s.State().State == StateLive
	}, time.Second, 5*time.Millisecond)

	s.Close()

	for range s.Events() {
	}
	assert.Equal(t, StateUnsubscribed, s.State().State)
}

func TestOpenSession_MessageSubscriptionFails(t *testing.T) {
	store := &messageSubscribeFailStore{MemoryStore: newTestStore()}
	uc := NewChatUseCase(store, store, store, nil, nil, testTimings())
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, SendMessageInput{ConversationID: testConversation, Viewer: customerViewer, Text: "hidden"})
	require.NoError(t, err)

	s := uc.OpenSession(ctx, adminViewer, testConversation)

	state := s.State()
	assert.Equal(t, StateLive, state.State)
	assert.Empty(t, state.Messages)
	assert.Empty(t, state.Toasts)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	require.NoError(t, uc.WaitForBackground(ctx))
}

func TestOpenSession_ReceiptSubscriptionFails(t *testing.T) {
	store := &receiptSubscribeFailStore{MemoryStore: newTestStore()}
	uc := NewChatUseCase(store, store, store, nil, nil, testTimings())
	ctx := context.Background()

	_, err := uc.SendMessage(ctx, SendMessageInput{ConversationID: testConversation, Viewer: customerViewer, Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, uc.MarkRead(ctx, testConversation, entity.RoleAdmin))

	s := uc.OpenSession(ctx, adminViewer, testConversation)
	defer s.Close()

	assert.Eventually(t, func() bool {
		state := s.State()
		return state.State == StateLive && len(state.Messages) == 1 && state.Unread == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, uc.WaitForBackground(ctx))
}
