package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/repository"
	"tidyhome/internal/domain/service"
	"tidyhome/internal/infrastructure/metrics"
	"tidyhome/internal/infrastructure/ratelimit"
	"tidyhome/pkg/config"
	apperrors "tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
)

type ChatUseCase struct {
	conversationRepo repository.ConversationRepository
	receiptRepo      repository.ReadReceiptRepository
	requestRepo      repository.BookingRequestRepository
	notifier         service.MessageNotifier
	rateLimiter      *ratelimit.RateLimiter
	timings          config.ChatConfig

	background sync.WaitGroup
}

func NewChatUseCase(
	conversationRepo repository.ConversationRepository,
	receiptRepo repository.ReadReceiptRepository,
	requestRepo repository.BookingRequestRepository,
	notifier service.MessageNotifier,
	rateLimiter *ratelimit.RateLimiter,
	timings config.ChatConfig,
) *ChatUseCase {
	return &ChatUseCase{
		conversationRepo: conversationRepo,
		receiptRepo:      receiptRepo,
		requestRepo:      requestRepo,
		notifier:         notifier,
		rateLimiter:      rateLimiter,
		timings:          timings,
	}
}

type SendMessageInput struct {
	ConversationID string
	Viewer         entity.Viewer
	Text           string
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// AuthorizeConversation checks that the viewer may open the conversation.
// Conversation ids are booking request ids.
func (uc *ChatUseCase) AuthorizeConversation(ctx context.Context, viewer entity.Viewer, conversationID string) (*entity.BookingRequest, error) {
	if conversationID == "" {
		return nil, apperrors.BadRequest("Conversation ID is required", nil)
	}
	if !viewer.Role.Valid() {
		return nil, apperrors.Forbidden("Unknown role", nil)
	}

	request, err := uc.requestRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if viewer.Role == entity.RoleCustomer && request.UserID != viewer.UserID {
		logger.Warn("AuthorizeConversation: user %s denied access to conversation %s", viewer.UserID, conversationID)
		return nil, apperrors.Forbidden("You don't have access to this conversation", nil)
	}
	return request, nil
}

// SendMessage appends a message and returns once the store acknowledged it.
// The counterpart's counter and the notification follow in the background
// and never fail the send.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.EmptyMessage()
	}
	if !input.Viewer.Role.Valid() {
		return nil, apperrors.Forbidden("Unknown role", nil)
	}

	if uc.rateLimiter != nil {
		allowed, wait := uc.rateLimiter.Allow(input.Viewer.UserID, ratelimit.ActionSendMessage)
		if !allowed {
			logger.Warn("SendMessage: user %s rate limited, retry in %v", input.Viewer.UserID, wait)
			return nil, apperrors.TooManyRequests(fmt.Sprintf("Too many messages, retry in %s", wait.Round(time.Second)))
		}
	}

	msg := &entity.Message{
		ConversationID: input.ConversationID,
		Text:           text,
		Sender:         input.Viewer.Role,
		SenderName:     input.Viewer.Label(),
		SenderPhoto:    input.Viewer.PhotoURL,
	}

	if _, err := uc.conversationRepo.AppendMessage(ctx, msg); err != nil {
		logger.Error("SendMessage: append to %s failed: %v", input.ConversationID, err)
		if apperrors.Is(err, apperrors.CodeStoreWriteFailed) {
			return nil, err
		}
		return nil, apperrors.StoreWriteFailed("append message", err)
	}
	metrics.MessageSent(input.Viewer.Role.String())

	uc.runInBackground(ctx, func(bgCtx context.Context) {
		uc.afterSend(bgCtx, input.Viewer, msg)
	})

	return msg, nil
}

// runInBackground detaches fn from the caller so it survives the request.
func (uc *ChatUseCase) runInBackground(ctx context.Context, fn func(context.Context)) {
	timeout := uc.timings.SideEffectTimeout
	if timeout <= 0 {
		timeout = config.DefaultChatConfig().SideEffectTimeout
	}

	uc.background.Add(1)
	go func() {
		defer uc.background.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		fn(bgCtx)
	}()
}

func (uc *ChatUseCase) afterSend(ctx context.Context, sender entity.Viewer, msg *entity.Message) {
	recipient := sender.Role.Counterpart()

	if err := uc.conversationRepo.IncrementUnread(ctx, msg.ConversationID, recipient, 1); err != nil {
		metrics.SideEffectFailed(metrics.KindCounterIncrement)
		logger.LogSideEffectError(msg.ConversationID, "increment "+recipient.UnreadField(), err)
	}

	if uc.notifier == nil {
		return
	}

	conv := service.ConversationContext{
		ConversationID: msg.ConversationID,
		SenderName:     msg.SenderName,
	}
	if sender.Role == entity.RoleCustomer {
		conv.CustomerName = sender.Label()
		conv.CustomerEmail = sender.Email
	}
	if request, err := uc.requestRepo.GetByID(ctx, msg.ConversationID); err == nil {
		if request.CustomerName != "" {
			conv.CustomerName = request.CustomerName
		}
		if request.CustomerEmail != "" {
			conv.CustomerEmail = request.CustomerEmail
		}
	} else {
		logger.Debug("afterSend: booking request %s lookup failed: %v", msg.ConversationID, err)
	}

	if err := uc.notifier.NotifyCounterpartOfMessage(ctx, recipient, conv, msg.Text); err != nil {
		metrics.SideEffectFailed(metrics.KindNotification)
		logger.LogSideEffectError(msg.ConversationID, "notify "+recipient.String(), err)
	}
}

// MarkRead writes the receipt and resets the caller's own counter. Both writes
// are attempted even if one fails.
func (uc *ChatUseCase) MarkRead(ctx context.Context, conversationID string, role entity.Role) error {
	if !role.Valid() {
		return apperrors.Forbidden("Unknown role", nil)
	}

	var errs []error
	if err := uc.receiptRepo.MarkRead(ctx, conversationID, role); err != nil {
		metrics.SideEffectFailed(metrics.KindReadReceipt)
		logger.LogSideEffectError(conversationID, "mark read "+role.String(), err)
		errs = append(errs, err)
	}
	if err := uc.conversationRepo.ResetUnread(ctx, conversationID, role); err != nil {
		metrics.SideEffectFailed(metrics.KindCounterReset)
		logger.LogSideEffectError(conversationID, "reset "+role.UnreadField(), err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return apperrors.StoreWriteFailed("mark conversation read", errors.Join(errs...))
	}
	return nil
}

// ListMessages returns the conversation ascending by createdAt.
func (uc *ChatUseCase) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	messages, err := uc.conversationRepo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return sortedMessages(messages), nil
}

// UnreadCount computes the derived unread count once.
func (uc *ChatUseCase) UnreadCount(ctx context.Context, conversationID string, role entity.Role) (int, error) {
	if !role.Valid() {
		return 0, apperrors.Forbidden("Unknown role", nil)
	}

	messages, err := uc.conversationRepo.ListMessages(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	var lastReadAt *time.Time
	receipt, err := uc.receiptRepo.GetReadReceipt(ctx, conversationID, role)
	if err != nil {
		logger.Warn("UnreadCount: receipt for %s/%s unavailable, treating as never read: %v", conversationID, role, err)
	} else if receipt != nil {
		lastReadAt = &receipt.LastReadAt
	}

	return CountUnread(messages, role, lastReadAt), nil
}

// UnreadCounter returns the stored counter pair. It is kept for list badges
// and is not the source of truth for the unread count.
func (uc *ChatUseCase) UnreadCounter(ctx context.Context, conversationID string) (*entity.UnreadCounter, error) {
	return uc.conversationRepo.GetUnreadCounter(ctx, conversationID)
}

// WaitForBackground blocks until pending side effects finish or ctx ends.
func (uc *ChatUseCase) WaitForBackground(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
