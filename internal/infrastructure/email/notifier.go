package email

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"tidyhome/internal/domain/entity"
	"tidyhome/internal/domain/service"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
)

// mailClient is the part of *sendgrid.Client the notifier uses.
type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type Options struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	AdminEmail  string
}

type sendgridNotifier struct {
	client      mailClient
	senderEmail string
	senderName  string
	adminEmail  string
}

// NewNotifier returns a SendGrid notifier, or a logging notifier when no API
// key is configured.
func NewNotifier(opts Options) service.MessageNotifier {
	if opts.APIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set; message notifications will only be logged")
		return logNotifier{}
	}
	return newSendgridNotifier(sendgrid.NewSendClient(opts.APIKey), opts)
}

func newSendgridNotifier(client mailClient, opts Options) *sendgridNotifier {
	return &sendgridNotifier{
		client:      client,
		senderEmail: opts.SenderEmail,
		senderName:  opts.SenderName,
		adminEmail:  opts.AdminEmail,
	}
}

func (n *sendgridNotifier) NotifyCounterpartOfMessage(ctx context.Context, recipient entity.Role, conv service.ConversationContext, text string) error {
	var toName, toEmail, subject string
	switch recipient {
	case entity.RoleAdmin:
		toName, toEmail = n.senderName, n.adminEmail
		subject = fmt.Sprintf("New message from %s", conv.SenderName)
	case entity.RoleCustomer:
		toName, toEmail = conv.CustomerName, conv.CustomerEmail
		subject = fmt.Sprintf("%s replied to your cleaning request", conv.SenderName)
	default:
		return errors.BadRequest("unknown notification recipient", nil)
	}
	if toEmail == "" {
		return errors.NotificationSendFailed(fmt.Errorf("no e-mail address for %s of conversation %s", recipient, conv.ConversationID))
	}

	plain := fmt.Sprintf("%s wrote:\n\n%s\n\nConversation: %s", conv.SenderName, text, conv.ConversationID)
	htmlContent := fmt.Sprintf("<p><strong>%s</strong> wrote:</p><blockquote>%s</blockquote>",
		html.EscapeString(conv.SenderName), html.EscapeString(text))

	from := mail.NewEmail(n.senderName, n.senderEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, htmlContent)

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return errors.NotificationSendFailed(err)
	}
	if resp.StatusCode >= 400 {
		return errors.NotificationSendFailed(fmt.Errorf("sendgrid returned status %d", resp.StatusCode))
	}
	return nil
}

type logNotifier struct{}

func (logNotifier) NotifyCounterpartOfMessage(ctx context.Context, recipient entity.Role, conv service.ConversationContext, text string) error {
	logger.Info("Notification (not sent): to=%s conversation=%s from=%s", recipient, conv.ConversationID, conv.SenderName)
	return nil
}
