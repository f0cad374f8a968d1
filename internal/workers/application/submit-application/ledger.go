// internal/workers/application/submit-application/ledger.go
package submitapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-intake/internal/common/database"
)

// ledgerRow is what the local applications table keeps about a submission.
type ledgerRow struct {
	StaffApplicationID string
	Status             string
	Duplicate          bool
	ApplicantEmail     sql.NullString
	RequestedAmount    decimal.NullDecimal
	Category           sql.NullString
	Country            sql.NullString
	Payload            []byte
}

const upsertApplication = `
	INSERT INTO applications (
		id, staff_application_id, status, duplicate, applicant_email,
		requested_amount, category, country, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (staff_application_id) DO UPDATE SET
		status = EXCLUDED.status,
		duplicate = EXCLUDED.duplicate,
		payload = EXCLUDED.payload,
		updated_at = NOW()
	RETURNING id`

// recordSubmission upserts the ledger row and its audit entry in one
// transaction and returns the ledger id. Resubmissions keep the first id.
func recordSubmission(ctx context.Context, db *sql.DB, row ledgerRow) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ledgerID string
	err = tx.QueryRowContext(ctx, upsertApplication,
		uuid.New().String(),
		row.StaffApplicationID,
		row.Status,
		row.Duplicate,
		row.ApplicantEmail,
		row.RequestedAmount,
		row.Category,
		row.Country,
		row.Payload,
	).Scan(&ledgerID)
	if err != nil {
		return "", fmt.Errorf("upsert application: %w", err)
	}

	action := "application_submitted"
	if row.Duplicate {
		action = "application_resubmitted"
	}
	details, _ := json.Marshal(map[string]interface{}{
		"ledgerId": ledgerID,
		"status":   row.Status,
	})
	if err := database.WriteAudit(ctx, tx, database.AuditEntry{
		EntityID: row.StaffApplicationID,
		Action:   action,
		Details:  details,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return ledgerID, nil
}

// ledgerFields pulls the indexed columns out of the form steps. Forms have
// used several field names over time, so each column checks a list.
func ledgerFields(input *Input) (email, category, country sql.NullString, amount decimal.NullDecimal) {
	email = firstText(input.Step4, "email", "applicantEmail", "contactEmail")
	if !email.Valid {
		email = firstText(input.Step3, "email", "businessEmail")
	}
	category = firstText(input.Step1, "category", "productCategory", "lookingFor")
	country = firstText(input.Step1, "country", "businessLocation")
	amount = firstAmount(input.Step1, "requestedAmount", "fundingAmount", "amount")
	return
}

func firstText(step map[string]interface{}, keys ...string) sql.NullString {
	for _, k := range keys {
		if s, ok := step[k].(string); ok && strings.TrimSpace(s) != "" {
			return sql.NullString{String: strings.TrimSpace(s), Valid: true}
		}
	}
	return sql.NullString{}
}

func firstAmount(step map[string]interface{}, keys ...string) decimal.NullDecimal {
	for _, k := range keys {
		switch v := step[k].(type) {
		case float64:
			return decimal.NewNullDecimal(decimal.NewFromFloat(v))
		case json.Number:
			if d, err := decimal.NewFromString(v.String()); err == nil {
				return decimal.NewNullDecimal(d)
			}
		case string:
			cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(v)
			if d, err := decimal.NewFromString(cleaned); err == nil {
				return decimal.NewNullDecimal(d)
			}
		}
	}
	return decimal.NullDecimal{}
}
