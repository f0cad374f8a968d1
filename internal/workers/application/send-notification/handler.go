// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/validation"
)

const (
	TaskType = "send-notification"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
	ErrUnknownNotification    = errors.New("RESOURCE_NOT_FOUND")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    logger.Logger
	errors    *commonerrors.ErrorHandler
	sesClient SESService
	snsClient SNSService
}

// NewHandler wires the worker. A nil service turns its channel off; a nil db
// means recipients must be passed in the job.
func NewHandler(config *Config, sesClient SESService, snsClient SNSService, db *sql.DB, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		db:        db,
		logger:    l,
		errors:    commonerrors.NewErrorHandler(l),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, timer, commonerrors.Wrap(commonerrors.ErrCodeParseError, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code := commonerrors.ErrCodeInternal
		if errors.Is(err, ErrNotificationSendFailed) {
			code = commonerrors.ErrCodeNotificationSendFailed
		} else if errors.Is(err, ErrUnknownNotification) {
			code = commonerrors.ErrCodeResourceNotFound
		}
		h.failJob(client, job, timer, commonerrors.Wrap(code, err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, exists := templates[input.NotificationType]
	if !exists {
		return nil, fmt.Errorf("%w: no template for notification type %q", ErrUnknownNotification, input.NotificationType)
	}

	notificationID := uuid.New().String()
	sentAt := time.Now().UTC().Format(time.RFC3339)
	disabled := &Output{NotificationID: notificationID, Status: StatusDisabled, Channels: []string{}, SentAt: sentAt}

	email, err := h.recipientEmail(ctx, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.logger.Warn("recipient not found", map[string]interface{}{
				"applicationId": input.ApplicationID,
			})
			return disabled, nil
		}
		return nil, fmt.Errorf("%w: recipient lookup: %v", ErrNotificationSendFailed, err)
	}

	data := map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"notificationType": input.NotificationType,
		"applicantName":    input.ApplicantName,
		"portalUrl":        h.config.PortalURL,
	}
	if input.ApplicantName == "" {
		data["applicantName"] = "there"
	}
	for k, v := range input.Metadata {
		data[k] = v
	}

	var channels []string

	if h.config.EmailEnabled && h.sesClient != nil && email != "" {
		if !validation.ValidateEmail(email) {
			h.logger.Warn("skipping invalid recipient email", map[string]interface{}{
				"applicationId": input.ApplicationID,
			})
		} else {
			subject := renderTemplate(tmpl.Subject, data)
			body := renderTemplate(tmpl.Body, data)
			if err := h.sendEmail(ctx, email, subject, body); err != nil {
				return nil, fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
			}
			channels = append(channels, ChannelEmail)
		}
	}

	// SMS goes out only for high priority jobs with an SMS template.
	if h.config.SMSEnabled && h.snsClient != nil && tmpl.SMS != "" && input.Priority == "high" && input.RecipientPhone != "" {
		if !validation.ValidatePhone(input.RecipientPhone) {
			h.logger.Warn("skipping invalid recipient phone", map[string]interface{}{
				"applicationId": input.ApplicationID,
			})
		} else {
			if err := h.sendSMS(ctx, input.RecipientPhone, renderTemplate(tmpl.SMS, data)); err != nil {
				return nil, fmt.Errorf("%w: sms: %v", ErrNotificationSendFailed, err)
			}
			channels = append(channels, ChannelSMS)
		}
	}

	if len(channels) == 0 {
		return disabled, nil
	}

	h.logger.Info("notification sent", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"notificationType": input.NotificationType,
		"channels":         channels,
	})

	return &Output{
		NotificationID: notificationID,
		Status:         StatusSent,
		Channels:       channels,
		SentAt:         sentAt,
	}, nil
}

// recipientEmail prefers the job's address and falls back to the one
// recorded when the application was submitted.
func (h *Handler) recipientEmail(ctx context.Context, input *Input) (string, error) {
	if input.RecipientEmail != "" || h.db == nil || input.ApplicationID == "" {
		return input.RecipientEmail, nil
	}

	var email sql.NullString
	err := h.db.QueryRowContext(ctx,
		`SELECT applicant_email FROM applications WHERE staff_application_id = $1`,
		input.ApplicationID,
	).Scan(&email)
	if err != nil {
		return "", err
	}
	return email.String, nil
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	params := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if h.config.SenderID != "" {
		params.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(h.config.SenderID),
			},
		}
	}
	_, err := h.snsClient.Publish(ctx, params)
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, timer *metrics.JobTimer, stdErr *commonerrors.StandardError) {
	timer.Done(string(stdErr.Code))
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
