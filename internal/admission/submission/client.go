// Package submission sends a completed admission record, with its documents,
// to the school's admissions endpoint.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"parent-portal/internal/common/auth"
	"parent-portal/internal/common/errors"
	apphttp "parent-portal/internal/common/http"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/models"

	"github.com/google/uuid"
)

// Submitter is what the workflow calls on the final step.
type Submitter interface {
	Submit(ctx context.Context, record models.ApplicationRecord) (*Receipt, error)
}

// Receipt is the server's acknowledgement of a submission.
type Receipt struct {
	ApplicationID  string    `json:"applicationId"`
	Reference      string    `json:"reference"`
	Message        string    `json:"message"`
	StatusCode     int       `json:"-"`
	IdempotencyKey string    `json:"-"`
	SubmittedAt    time.Time `json:"-"`
}

type Client struct {
	endpoint   string
	httpClient *apphttp.Client
	tokens     auth.TokenSource
	files      FileOpener
	logger     logger.Logger
}

func NewClient(endpoint string, httpClient *apphttp.Client, tokens auth.TokenSource, files FileOpener, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = apphttp.NewClient(60 * time.Second)
	}
	if files == nil {
		files = LocalFileOpener{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		tokens:     tokens,
		files:      files,
		logger:     log.WithFields(map[string]interface{}{"component": "submission"}),
	}
}

// Submit posts the record under a fresh idempotency key.
func (c *Client) Submit(ctx context.Context, record models.ApplicationRecord) (*Receipt, error) {
	return c.SubmitWithKey(ctx, record, uuid.NewString())
}

// SubmitWithKey posts the record; retries of one attempt reuse key.
func (c *Client) SubmitWithKey(ctx context.Context, record models.ApplicationRecord, key string) (*Receipt, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if _, ok := errors.AsStandard(err); ok {
			return nil, err
		}
		return nil, errors.NewSessionExpiredError(err.Error())
	}

	body, contentType, err := c.encode(ctx, record)
	if err != nil {
		se := errors.NewSubmissionFailedError(0, err)
		se.Retryable = false
		return nil, se
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		se := errors.NewSubmissionFailedError(0, err)
		se.Retryable = false
		return nil, se
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, errors.NewSubmissionTimeoutError(err)
		}
		return nil, errors.NewSubmissionFailedError(0, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	fields := map[string]interface{}{
		"status":         resp.StatusCode,
		"idempotencyKey": key,
		"durationMs":     time.Since(start).Milliseconds(),
	}

	switch {
	case apphttp.IsAuthFailure(resp.StatusCode):
		c.logger.Warn("submission rejected: session expired", fields)
		return nil, errors.NewSessionExpiredError(fmt.Sprintf("admissions endpoint returned %d", resp.StatusCode))

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Error("submission failed", fields)
		return nil, errors.NewSubmissionFailedError(resp.StatusCode,
			fmt.Errorf("admissions endpoint returned %d: %s", resp.StatusCode, snippet(raw)))
	}

	receipt := &Receipt{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, receipt); err != nil {
			c.logger.Warn("submission accepted with unreadable body", map[string]interface{}{"error": err})
		}
	}
	receipt.StatusCode = resp.StatusCode
	receipt.IdempotencyKey = key
	receipt.SubmittedAt = time.Now().UTC()

	fields["applicationId"] = receipt.ApplicationID
	c.logger.Info("application submitted", fields)
	return receipt, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encode builds the multipart body: the record as JSON in part "application"
// and one part per uploaded document.
func (c *Client) encode(ctx context.Context, record models.ApplicationRecord) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="application"`)
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(part).Encode(record); err != nil {
		return nil, "", fmt.Errorf("encode application: %w", err)
	}

	docs := record.Documents.Files()
	for _, field := range []string{"file1", "file2", "file3"} {
		ref, ok := docs[field]
		if !ok {
			continue
		}
		if err := c.attach(ctx, mw, field, *ref); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) attach(ctx context.Context, mw *multipart.Writer, field string, ref models.FileRef) error {
	rc, err := c.files.Open(ctx, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	defer rc.Close()

	contentType := ref.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(ref.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("%s: read: %w", field, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return stderrors.As(err, &t) && t.Timeout()
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
