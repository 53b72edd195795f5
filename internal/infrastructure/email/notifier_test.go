package email

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/service"
	"tidyhome/pkg/errors"
)

type mockMailClient struct {
	mock.Mock
}

func (m *mockMailClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	resp, _ := args.Get(0).(*rest.Response)
	return resp, args.Error(1)
}

var testOpts = Options{SenderEmail: "hello@tidyhome.test", SenderName: "TidyHome", AdminEmail: "office@tidyhome.test"}

func recipientOf(email *mail.SGMailV3) string {
	return email.Personalizations[0].To[0].Address
}

func TestNotify_AdminRecipientUsesAdminEmail(t *testing.T) {
	client := new(mockMailClient)
	n := newSendgridNotifier(client, testOpts)

	client.On("SendWithContext", mock.Anything, mock.MatchedBy(func(e *mail.SGMailV3) bool {
		return recipientOf(e) == "office@tidyhome.test"
	})).Return(&rest.Response{StatusCode: 202}, nil)

	err := n.NotifyCounterpartOfMessage(context.Background(), entity.RoleAdmin,
		service.ConversationContext{ConversationID: "req-1", SenderName: "Dana"}, "Is Tuesday ok?")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestNotify_CustomerRecipientUsesConversationEmail(t *testing.T) {
	client := new(mockMailClient)
	n := newSendgridNotifier(client, testOpts)

	client.On("SendWithContext", mock.Anything, mock.MatchedBy(func(e *mail.SGMailV3) bool {
		return recipientOf(e) == "dana@example.com"
	})).Return(&rest.Response{StatusCode: 202}, nil)

	err := n.NotifyCounterpartOfMessage(context.Background(), entity.RoleCustomer,
		service.ConversationContext{ConversationID: "req-1", SenderName: "TidyHome", CustomerEmail: "dana@example.com"}, "Yes")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestNotify_Failures(t *testing.T) {
	client := new(mockMailClient)
	n := newSendgridNotifier(client, testOpts)
	conv := service.ConversationContext{ConversationID: "req-1", SenderName: "TidyHome", CustomerEmail: "dana@example.com"}

	client.On("SendWithContext", mock.Anything, mock.Anything).Return(&rest.Response{StatusCode: 500}, nil).Once()
	err := n.NotifyCounterpartOfMessage(context.Background(), entity.RoleCustomer, conv, "hi")
	assert.True(t, errors.Is(err, errors.CodeNotificationSendFailed))

	client.On("SendWithContext", mock.Anything, mock.Anything).Return(nil, stderrors.New("dial tcp: timeout")).Once()
	err = n.NotifyCounterpartOfMessage(context.Background(), entity.RoleCustomer, conv, "hi")
	assert.True(t, errors.Is(err, errors.CodeNotificationSendFailed))

	err = n.NotifyCounterpartOfMessage(context.Background(), entity.RoleCustomer, service.ConversationContext{ConversationID: "req-2"}, "hi")
	assert.True(t, errors.Is(err, errors.CodeNotificationSendFailed))
	client.AssertNumberOfCalls(t, "SendWithContext", 2)
}

func TestNewNotifier_WithoutAPIKeyLogsOnly(t *testing.T) {
	n := NewNotifier(Options{})
	assert.IsType(t, logNotifier{}, n)
	assert.NoError(t, n.NotifyCounterpartOfMessage(context.Background(), entity.RoleAdmin, service.ConversationContext{}, "hi"))
}
