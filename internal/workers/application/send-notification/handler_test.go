// internal/workers/application/send-notification/handler_test.go
package sendnotification

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-intake/internal/common/logger"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         int
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls++
	if m.SendEmailFunc == nil {
		return &ses.SendEmailOutput{}, nil
	}
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       int
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls++
	if m.PublishFunc == nil {
		return &sns.PublishOutput{}, nil
	}
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		EmailEnabled: true,
		SMSEnabled:   true,
		FromEmail:    "applications@lender.example.com",
		SenderID:     "BFLender",
		PortalURL:    "https://apply.lender.example.com",
		Timeout:      30 * time.Second,
	}
}

func createTestInput(notificationType string) *Input {
	return &Input{
		ApplicationID:    "app-001",
		NotificationType: notificationType,
		RecipientEmail:   "jane@example.com",
		RecipientPhone:   "+14165550100",
		ApplicantName:    "Jane",
		Priority:         "high",
	}
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name         string
		input        *Input
		emailEnabled bool
		smsEnabled   bool
		wantStatus   string
		wantChannels []string
	}{
		{
			name:         "email and SMS",
			input:        createTestInput(TypeApplicationSubmitted),
			emailEnabled: true,
			smsEnabled:   true,
			wantStatus:   StatusSent,
			wantChannels: []string{ChannelEmail, ChannelSMS},
		},
		{
			name:         "email only",
			input:        createTestInput(TypeDocumentsRequired),
			emailEnabled: true,
			smsEnabled:   false,
			wantStatus:   StatusSent,
			wantChannels: []string{ChannelEmail},
		},
		{
			name:         "SMS only",
			input:        createTestInput(TypeApplicationSubmitted),
			emailEnabled: false,
			smsEnabled:   true,
			wantStatus:   StatusSent,
			wantChannels: []string{ChannelSMS},
		},
		{
			name:         "signature completed has no SMS text",
			input:        createTestInput(TypeSignatureCompleted),
			emailEnabled: false,
			smsEnabled:   true,
			wantStatus:   StatusDisabled,
			wantChannels: []string{},
		},
		{
			name: "no SMS for normal priority",
			input: func() *Input {
				in := createTestInput(TypeApplicationSubmitted)
				in.Priority = ""
				return in
			}(),
			emailEnabled: false,
			smsEnabled:   true,
			wantStatus:   StatusDisabled,
			wantChannels: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSES := &MockSESService{
				SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
					assert.Equal(t, "jane@example.com", params.Destination.ToAddresses[0])
					assert.Equal(t, "applications@lender.example.com", *params.Source)
					return &ses.SendEmailOutput{}, nil
				},
			}
			mockSNS := &MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					assert.Equal(t, "+14165550100", *params.PhoneNumber)
					assert.Equal(t, "BFLender", *params.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
					return &sns.PublishOutput{}, nil
				},
			}

			config := createTestConfig()
			config.EmailEnabled = tt.emailEnabled
			config.SMSEnabled = tt.smsEnabled

			handler := NewHandler(config, mockSES, mockSNS, nil, newTestLogger(t))
			output, err := handler.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, output.Status)
			assert.Equal(t, tt.wantChannels, output.Channels)
			assert.NotEmpty(t, output.NotificationID)
			_, err = time.Parse(time.RFC3339, output.SentAt)
			assert.NoError(t, err)
		})
	}
}

func TestHandler_Execute_RendersDocuments(t *testing.T) {
	var body string
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			body = *params.Message.Body.Text.Data
			assert.Equal(t, "Documents needed for your application", *params.Message.Subject.Data)
			return &ses.SendEmailOutput{}, nil
		},
	}

	input := createTestInput(TypeDocumentsRequired)
	input.Metadata = map[string]interface{}{
		"documents": []interface{}{"Bank Statements", "Void Cheque / PAD"},
	}

	handler := NewHandler(createTestConfig(), mockSES, nil, nil, newTestLogger(t))
	_, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, body, "Hi Jane,")
	assert.Contains(t, body, "please upload: Bank Statements, Void Cheque / PAD.")
	assert.Contains(t, body, "https://apply.lender.example.com")
}

func TestHandler_Execute_RecipientFromLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT applicant_email FROM applications WHERE staff_application_id = \$1`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"applicant_email"}).AddRow("owner@maple.example"))

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			assert.Equal(t, "owner@maple.example", params.Destination.ToAddresses[0])
			return &ses.SendEmailOutput{}, nil
		},
	}

	input := createTestInput(TypeSignatureCompleted)
	input.RecipientEmail = ""

	handler := NewHandler(createTestConfig(), mockSES, nil, db, newTestLogger(t))
	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RecipientNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT applicant_email FROM applications`).
		WithArgs("app-001").
		WillReturnError(sql.ErrNoRows)

	mockSES := &MockSESService{}
	input := createTestInput(TypeApplicationSubmitted)
	input.RecipientEmail = ""
	input.Priority = ""

	handler := NewHandler(createTestConfig(), mockSES, nil, db, newTestLogger(t))
	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, output.Status)
	assert.Equal(t, 0, mockSES.calls)
}

func TestHandler_Execute_InvalidContacts(t *testing.T) {
	mockSES := &MockSESService{}
	mockSNS := &MockSNSService{}

	input := createTestInput(TypeApplicationSubmitted)
	input.RecipientEmail = "not-an-email"
	input.RecipientPhone = "555-0100"

	handler := NewHandler(createTestConfig(), mockSES, mockSNS, nil, newTestLogger(t))
	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, output.Status)
	assert.Equal(t, 0, mockSES.calls)
	assert.Equal(t, 0, mockSNS.calls)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_SendFailures(t *testing.T) {
	t.Run("email failure", func(t *testing.T) {
		mockSES := &MockSESService{
			SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
				return nil, errors.New("MessageRejected: Email address is not verified")
			},
		}
		handler := NewHandler(createTestConfig(), mockSES, &MockSNSService{}, nil, newTestLogger(t))

		_, err := handler.Execute(context.Background(), createTestInput(TypeApplicationSubmitted))
		assert.True(t, errors.Is(err, ErrNotificationSendFailed))
	})

	t.Run("sms failure", func(t *testing.T) {
		mockSNS := &MockSNSService{
			PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
				return nil, errors.New("throttled")
			},
		}
		handler := NewHandler(createTestConfig(), &MockSESService{}, mockSNS, nil, newTestLogger(t))

		_, err := handler.Execute(context.Background(), createTestInput(TypeApplicationSubmitted))
		assert.True(t, errors.Is(err, ErrNotificationSendFailed))
	})

	t.Run("ledger lookup failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery(`SELECT applicant_email`).WillReturnError(errors.New("connection refused"))

		input := createTestInput(TypeApplicationSubmitted)
		input.RecipientEmail = ""

		handler := NewHandler(createTestConfig(), &MockSESService{}, nil, db, newTestLogger(t))
		_, err = handler.Execute(context.Background(), input)
		assert.True(t, errors.Is(err, ErrNotificationSendFailed))
	})
}

func TestHandler_Execute_UnknownType(t *testing.T) {
	handler := NewHandler(createTestConfig(), &MockSESService{}, nil, nil, newTestLogger(t))

	_, err := handler.Execute(context.Background(), createTestInput("new_franchise_lead"))
	assert.True(t, errors.Is(err, ErrUnknownNotification))
}

// ==========================
// Template Rendering Tests
// ==========================

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		data     map[string]interface{}
		expected string
	}{
		{
			name:     "simple replacement",
			tmpl:     "Application {{applicationId}}",
			data:     map[string]interface{}{"applicationId": "app-1"},
			expected: "Application app-1",
		},
		{
			name:     "missing placeholder removed",
			tmpl:     "Hello {{applicantName}}!",
			data:     map[string]interface{}{},
			expected: "Hello !",
		},
		{
			name:     "numbers and lists",
			tmpl:     "{{count}} documents: {{documents}}",
			data:     map[string]interface{}{"count": 2, "documents": []string{"A", "B"}},
			expected: "2 documents: A, B",
		},
		{
			name:     "unterminated placeholder kept",
			tmpl:     "broken {{tag",
			data:     map[string]interface{}{},
			expected: "broken {{tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderTemplate(tt.tmpl, tt.data))
		})
	}
}

func TestTemplatesCoverNotificationTypes(t *testing.T) {
	for _, typ := range []string{TypeApplicationSubmitted, TypeDocumentsRequired, TypeSignatureCompleted} {
		tmpl, ok := templates[typ]
		require.True(t, ok, typ)
		assert.NotEmpty(t, tmpl.Subject)
		assert.NotEmpty(t, tmpl.Body)
	}
}
