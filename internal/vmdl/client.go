package vmdl

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vacme/internal/vmdl/models"
	"vacme/pkg/platform/sentinel"
)

// Client pushes enriched batches to the national registry. A batch succeeds
// or fails as one HTTP call; there is no per-record partial success.
type Client interface {
	UploadVaccinationData(ctx context.Context, entries []models.UploadEntry) error
	DeleteVaccinationData(ctx context.Context, entries []models.DeleteEntry) error
}

type restClient struct {
	http   *resty.Client
	tokens *TokenSource
	log    *zap.Logger
}

// NewClient builds the registry client for one disease. baseURL is the
// disease-specific base path; tokens supplies the matching client-id token.
func NewClient(baseURL string, tokens *TokenSource, log *zap.Logger) Client {
	return &restClient{
		http:   resty.New().SetBaseURL(baseURL),
		tokens: tokens,
		log:    log,
	}
}

func (c *restClient) UploadVaccinationData(ctx context.Context, entries []models.UploadEntry) error {
	if len(entries) == 0 {
		return nil
	}
	header, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", header).
		SetBody(entries).
		Post("/vaccinationData")
	if err != nil {
		return fmt.Errorf("upload vaccination data: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("upload vaccination data: %s: %w", resp.Status(), sentinel.ErrUnavailable)
	}
	return nil
}

func (c *restClient) DeleteVaccinationData(ctx context.Context, entries []models.DeleteEntry) error {
	if len(entries) == 0 {
		return nil
	}
	header, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", header).
		SetBody(entries).
		Delete("/vaccinationData")
	if err != nil {
		return fmt.Errorf("delete vaccination data: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("delete vaccination data: %w", sentinel.ErrNotFound)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("delete vaccination data: %s: %w", resp.Status(), sentinel.ErrUnavailable)
	}
	return nil
}
