// internal/workers/matching/resolve-document-requirements/handler.go
package resolvedocumentrequirements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-intake/internal/catalog"
	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/lending"
)

const (
	TaskType = "resolve-document-requirements"
)

var (
	ErrInvalidProfile     = errors.New("INVALID_APPLICANT_PROFILE")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
)

type Catalog interface {
	Products(ctx context.Context) (*catalog.Result, error)
}

type Handler struct {
	config  *Config
	catalog Catalog
	logger  logger.Logger
	errors  *commonerrors.ErrorHandler
}

func NewHandler(config *Config, products Catalog, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		catalog: products,
		logger:  l,
		errors:  commonerrors.NewErrorHandler(l),
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
		if errors.Is(err, ErrInvalidProfile) {
			code = commonerrors.ErrCodeInvalidApplicantProfile
		} else if errors.Is(err, ErrCatalogUnavailable) {
			code = commonerrors.ErrCodeCatalogUnavailable
		}
		h.failJob(client, job, timer, commonerrors.Wrap(code, err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

// execute intersects the document lists of the eligible products. When the
// catalog is degraded and nothing is eligible, the category's default
// checklist stands in so the applicant still sees what to prepare.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := input.ValidateForMatching(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	res, err := h.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	eligible := lending.FilterEligibleProducts(res.Products, input.ApplicantProfile)
	docs := lending.IntersectRequiredDocuments(eligible)
	source := SourceIntersection

	if len(eligible) == 0 {
		source = SourceNone
		if res.Degraded {
			if defaults := lending.DocumentsForCategory(lending.ParseCategory(input.Category).Category); len(defaults) > 0 {
				docs = defaults
				source = SourceCategoryDefaults
			}
		}
	}

	keys := make([]lending.DocumentKey, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}

	h.logger.Info("document requirements resolved", map[string]interface{}{
		"eligible":  len(eligible),
		"documents": len(docs),
		"source":    source,
	})

	return &Output{
		RequiredDocuments: docs,
		DocumentKeys:      keys,
		EligibleCount:     len(eligible),
		HasMatches:        len(eligible) > 0,
		Degraded:          res.Degraded,
		Source:            source,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, timer *metrics.JobTimer, stdErr *commonerrors.StandardError) {
	timer.Done(string(stdErr.Code))
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{"error": err})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
