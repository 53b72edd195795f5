package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/internal/infrastructure/metrics"
	"tidyhome/pkg/config"
	apperrors "tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
)

type SessionState string

const (
	StateUnsubscribed SessionState = "unsubscribed"
	StateSubscribing  SessionState = "subscribing"
	StateLive         SessionState = "live"
)

type EventType string

const (
	EventMessages     EventType = "messages"
	EventHighlight    EventType = "highlight"
	EventTyping       EventType = "typing"
	EventToastAdded   EventType = "toast_added"
	EventToastLeaving EventType = "toast_leaving"
	EventToastRemoved EventType = "toast_removed"
	EventUnread       EventType = "unread"
)

// SessionEvent is pushed to the view whenever session state changes.
type SessionEvent struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

type HighlightData struct {
	MessageIDs []string `json:"message_ids"`
}

type TypingData struct {
	Active bool `json:"active"`
}

type ToastRef struct {
	ID string `json:"id"`
}

type UnreadData struct {
	Count int `json:"count"`
}

// Toast announces a message that arrived from the counterpart while the view was live.
type Toast struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SpawnedAt  time.Time `json:"spawned_at"`
	Leaving    bool      `json:"leaving"`
}

// SessionSnapshot is a consistent copy of a session's state.
type SessionSnapshot struct {
	State       SessionState      `json:"state"`
	Messages    []*entity.Message `json:"messages"`
	Highlighted []string          `json:"highlighted"`
	Typing      bool              `json:"typing"`
	Toasts      []Toast           `json:"toasts"`
	Unread      int               `json:"unread"`
	Sending     bool              `json:"sending"`
}

const sessionEventBuffer = 64

// ChatSession is one mounted chat view: one conversation seen by one viewer.
// The first snapshot it receives is history; every id that shows up later is
// a live arrival. All state lives and dies with the session.
type ChatSession struct {
	uc             *ChatUseCase
	conversationID string
	viewer         entity.Viewer
	timings        config.ChatConfig

	mu          sync.Mutex
	state       SessionState
	closed      bool
	initialized bool
	seen        map[string]struct{}
	messages    []*entity.Message
	highlighted map[string]*time.Timer
	typing      bool
	typingTimer *time.Timer
	toasts      []*Toast
	toastTimers map[string]*time.Timer
	sending     bool
	unread      int

	events    chan SessionEvent
	cancel    context.CancelFunc
	unreadObs *UnreadObserver
	done      chan struct{}
	closeOnce sync.Once
}

func newChatSession(uc *ChatUseCase, viewer entity.Viewer, conversationID string) *ChatSession {
	return &ChatSession{
		uc:             uc,
		conversationID: conversationID,
		viewer:         viewer,
		timings:        uc.timings,
		state:          StateUnsubscribed,
		seen:           make(map[string]struct{}),
		highlighted:    make(map[string]*time.Timer),
		toastTimers:    make(map[string]*time.Timer),
		events:         make(chan SessionEvent, sessionEventBuffer),
		done:           make(chan struct{}),
	}
}

// OpenSession subscribes a new session to the conversation. The session
// outlives ctx; call Close when the view goes away.
func (uc *ChatUseCase) OpenSession(ctx context.Context, viewer entity.Viewer, conversationID string) *ChatSession {
	s := newChatSession(uc, viewer, conversationID)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.mu.Lock()
	s.state = StateSubscribing
	s.mu.Unlock()
	metrics.SessionOpened()

	feed, err := uc.conversationRepo.SubscribeMessages(ctx, conversationID)
	if err != nil {
		logger.Warn("OpenSession: subscribing to conversation %s failed, starting empty: %v", conversationID, err)
		s.handleSnapshot(nil)
		close(s.done)
	} else {
		go s.run(feed)
	}

	s.unreadObs = uc.ObserveUnread(ctx, conversationID, viewer.Role, s.setUnread)
	return s
}

func (s *ChatSession) ConversationID() string {
	return s.conversationID
}

func (s *ChatSession) Viewer() entity.Viewer {
	return s.viewer
}

// Events returns the session's event stream. It is closed by Close.
func (s *ChatSession) Events() <-chan SessionEvent {
	return s.events
}

func (s *ChatSession) run(feed repository.MessageFeed) {
	defer close(s.done)
	defer feed.Stop()

	for {
		messages, err := feed.Next()
		if err != nil {
			if !errors.Is(err, repository.ErrFeedClosed) {
				logger.Warn("ChatSession: message feed for %s failed, keeping last snapshot: %v", s.conversationID, err)
			}
			return
		}
		s.handleSnapshot(messages)
	}
}

// handleSnapshot applies one delivery of the full message sequence.
func (s *ChatSession) handleSnapshot(messages []*entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.messages = sortedMessages(messages)

	if !s.initialized {
		for _, m := range s.messages {
			s.seen[m.ID] = struct{}{}
		}
		s.initialized = true
		s.state = StateLive
		s.emitLocked(EventMessages, s.messages)
		return
	}

	var arrived []*entity.Message
	for _, m := range s.messages {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		arrived = append(arrived, m)
	}

	s.emitLocked(EventMessages, s.messages)
	if len(arrived) == 0 {
		return
	}

	for _, m := range arrived {
		s.highlightLocked(m.ID)
	}
	s.emitLocked(EventHighlight, HighlightData{MessageIDs: s.highlightedIDsLocked()})

	fromCounterpart := 0
	for _, m := range arrived {
		if m.Sender == s.viewer.Role {
			continue
		}
		fromCounterpart++
		s.pushToastLocked(m)
	}
	if fromCounterpart > 0 {
		s.pulseTypingLocked()
		metrics.ToastsRaised(fromCounterpart)
	}
}

func sortedMessages(messages []*entity.Message) []*entity.Message {
	out := make([]*entity.Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *ChatSession) highlightLocked(id string) {
	var t *time.Timer
	t = time.AfterFunc(s.timings.HighlightDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed || s.highlighted[id] != t {
			return
		}
		delete(s.highlighted, id)
		s.emitLocked(EventHighlight, HighlightData{MessageIDs: s.highlightedIDsLocked()})
	})
	s.highlighted[id] = t
}

func (s *ChatSession) highlightedIDsLocked() []string {
	ids := make([]string, 0, len(s.highlighted))
	for id := range s.highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *ChatSession) pulseTypingLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(s.timings.TypingPulseDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed || s.typingTimer != t {
			return
		}
		s.typing = false
		s.typingTimer = nil
		s.emitLocked(EventTyping, TypingData{Active: false})
	})
	s.typingTimer = t

	if !s.typing {
		s.typing = true
		s.emitLocked(EventTyping, TypingData{Active: true})
	}
}

func (s *ChatSession) pushToastLocked(m *entity.Message) {
	toast := &Toast{
		ID:         uuid.New().String(),
		MessageID:  m.ID,
		SenderName: m.SenderName,
		Text:       m.Text,
		SpawnedAt:  time.Now(),
	}
	s.toasts = append(s.toasts, toast)
	s.armToastTimerLocked(toast.ID, s.timings.ToastVisibleDuration, false)
	s.emitLocked(EventToastAdded, *toast)
}

// armToastTimerLocked schedules the next phase of a toast: the end of its
// visible phase, then its removal once the exit transition is over.
func (s *ChatSession) armToastTimerLocked(id string, d time.Duration, exiting bool) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed || s.toastTimers[id] != t {
			return
		}
		if exiting {
			s.removeToastLocked(id)
			return
		}
		for _, toast := range s.toasts {
			if toast.ID == id {
				toast.Leaving = true
			}
		}
		s.emitLocked(EventToastLeaving, ToastRef{ID: id})
		s.armToastTimerLocked(id, s.timings.ToastExitDuration, true)
	})
	s.toastTimers[id] = t
}

func (s *ChatSession) removeToastLocked(id string) bool {
	if t, ok := s.toastTimers[id]; ok {
		t.Stop()
		delete(s.toastTimers, id)
	}

	for i, toast := range s.toasts {
		if toast.ID == id {
			s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
			s.emitLocked(EventToastRemoved, ToastRef{ID: id})
			return true
		}
	}
	return false
}

// DismissToast removes a toast before its timers run out.
func (s *ChatSession) DismissToast(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.removeToastLocked(id)
}

func (s *ChatSession) setUnread(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.unread = count
	s.emitLocked(EventUnread, UnreadData{Count: count})
}

// emitLocked never blocks; a view that falls behind can resync from State.
func (s *ChatSession) emitLocked(eventType EventType, data interface{}) {
	select {
	case s.events <- SessionEvent{Type: eventType, Data: data}:
	default:
		logger.Debug("ChatSession: dropping %s event for %s, consumer is behind", eventType, s.conversationID)
	}
}

// Send appends a message as the session's viewer. Only one send may be in
// flight per session; a second one fails with ALREADY_SENDING.
func (s *ChatSession) Send(ctx context.Context, text string) (*entity.Message, error) {
	if isBlank(text) {
		return nil, apperrors.EmptyMessage()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.Conflict("Chat session is closed")
	}
	if s.sending {
		s.mu.Unlock()
		return nil, apperrors.AlreadySending()
	}
	s.sending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	return s.uc.SendMessage(ctx, SendMessageInput{
		ConversationID: s.conversationID,
		Viewer:         s.viewer,
		Text:           text,
	})
}

// MarkRead marks the conversation read for the session's viewer.
func (s *ChatSession) MarkRead(ctx context.Context) error {
	return s.uc.MarkRead(ctx, s.conversationID, s.viewer.Role)
}

func (s *ChatSession) State() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		State:       s.state,
		Messages:    append([]*entity.Message(nil), s.messages...),
		Highlighted: s.highlightedIDsLocked(),
		Typing:      s.typing,
		Toasts:      make([]Toast, 0, len(s.toasts)),
		Unread:      s.unread,
		Sending:     s.sending,
	}
	for _, toast := range s.toasts {
		snap.Toasts = append(snap.Toasts, *toast)
	}
	return snap
}

// Close cancels the subscription, stops every pending timer and discards the
// transient state. It is safe to call more than once.
func (s *ChatSession) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.state = StateUnsubscribed
		for id, t := range s.highlighted {
			t.Stop()
			delete(s.highlighted, id)
		}
		if s.typingTimer != nil {
			s.typingTimer.Stop()
			s.typingTimer = nil
		}
		s.typing = false
		for id, t := range s.toastTimers {
			t.Stop()
			delete(s.toastTimers, id)
		}
		s.toasts = nil
		s.seen = make(map[string]struct{})
		s.messages = nil
		close(s.events)
		s.mu.Unlock()

		s.cancel()
		<-s.done
		if s.unreadObs != nil {
			s.unreadObs.Close()
		}
		metrics.SessionClosed()
	})
}
