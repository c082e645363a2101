// Package notify sends the parent a receipt once an application is accepted.
package notify

import (
	"context"
	"strings"
	"time"

	appaws "parent-portal/internal/common/aws"
	"parent-portal/internal/common/config"
	"parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/common/metrics"
	"parent-portal/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// Notifier is called after a successful submission. Delivery problems are
// reported in the returned notifications, never as an error.
type Notifier interface {
	NotifySubmitted(ctx context.Context, record models.ApplicationRecord, applicationID, reference string) []models.Notification
}

type Config struct {
	SchoolName   string
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SenderID     string
	Timeout      time.Duration
}

// ConfigFrom maps the application configuration.
func ConfigFrom(app *config.Config) Config {
	return Config{
		SchoolName:   app.App.Name,
		EmailEnabled: app.Notifications.Email.Enabled,
		FromEmail:    app.Notifications.Email.FromEmail,
		SMSEnabled:   app.Notifications.SMS.Enabled,
		SenderID:     app.Notifications.SMS.SenderID,
		Timeout:      10 * time.Second,
	}
}

type ReceiptNotifier struct {
	cfg       Config
	sesClient appaws.SESService
	snsClient appaws.SNSService
	logger    logger.Logger
}

func NewReceiptNotifier(cfg Config, sesClient appaws.SESService, snsClient appaws.SNSService, log logger.Logger) *ReceiptNotifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ReceiptNotifier{
		cfg:       cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

func (n *ReceiptNotifier) NotifySubmitted(ctx context.Context, record models.ApplicationRecord, applicationID, reference string) []models.Notification {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	pg := record.ParentGuardian
	data := map[string]interface{}{
		"studentName":      strings.TrimSpace(record.Student.FirstName + " " + record.Student.SurName),
		"classOfAdmission": record.AdmissionDetail.ClassOfAdmission,
		"academicYear":     record.AdmissionDetail.AcademicYear,
		"applicationId":    applicationID,
		"reference":        reference,
		"schoolName":       n.cfg.SchoolName,
	}

	var out []models.Notification

	emails := []struct{ addr, name string }{
		{pg.FatherEmail, pg.FatherFirstName},
		{pg.MotherEmail, pg.MotherFirstName},
	}
	seen := map[string]bool{}
	for _, e := range emails {
		addr := strings.ToLower(strings.TrimSpace(e.addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		data["parentName"] = e.name
		out = append(out, n.deliver(models.ChannelEmail, applicationID, addr, n.cfg.EmailEnabled && n.sesClient != nil, func() error {
			return n.sendEmail(ctx, addr, renderTemplate(receiptSubject, data), renderTemplate(receiptEmail, data))
		}))
	}

	phone := pg.FatherPhone
	if phone == "" {
		phone = pg.MotherPhone
	}
	if phone = normalizePhone(phone); phone != "" {
		out = append(out, n.deliver(models.ChannelSMS, applicationID, phone, n.cfg.SMSEnabled && n.snsClient != nil, func() error {
			return n.sendSMS(ctx, phone, renderTemplate(receiptSMS, data))
		}))
	}
	return out
}

func (n *ReceiptNotifier) deliver(channel, applicationID, recipient string, enabled bool, send func() error) models.Notification {
	note := models.Notification{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		Channel:       channel,
		Recipient:     recipient,
		Status:        models.NotificationDisabled,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if !enabled {
		metrics.NotificationsSent.WithLabelValues(channel, note.Status).Inc()
		return note
	}

	if err := send(); err != nil {
		se := errors.NewNotificationSendFailedError(channel, err)
		n.logger.Error("receipt delivery failed", map[string]interface{}{
			"errorCode":     string(se.Code),
			"details":       se.Details,
			"applicationId": applicationID,
		})
		note.Status = models.NotificationFailed
	} else {
		note.Status = models.NotificationSent
	}
	metrics.NotificationsSent.WithLabelValues(channel, note.Status).Inc()
	return note
}

func (n *ReceiptNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.FromEmail),
	})
	return err
}

func (n *ReceiptNotifier) sendSMS(ctx context.Context, to, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if n.cfg.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.cfg.SenderID)},
			"AWS.SNS.SMS.SMSType":  {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		}
	}
	_, err := n.snsClient.Publish(ctx, input)
	return err
}

// normalizePhone strips spacing so SNS receives an E.164-looking number.
func normalizePhone(p string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(p))
}
