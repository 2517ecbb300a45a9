package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/models"
)

const (
	activeStudentsEndpoint  = "/getActiveStudents.htm"
	assessmentMarksEndpoint = "/getAssessmentMarks.htm"
	schoolExamEndpoint      = "/getSchoolExamMarks.htm"
)

// CategoryStandardized selects the standardized-marks endpoint; every other
// category value goes to the school-exam endpoint.
const (
	CategoryStandardized    = "Standardized"
	CategoryNonStandardized = "Non-Standardized"
)

// EdustemsClient fetches raw records from the school-management API. Auth is
// a static api-key query parameter; the API is served behind a self-signed
// certificate, hence the optional TLS verification skip.
type EdustemsClient struct {
	cfg        *config.Config
	httpClient *http.Client
	log        *logrus.Logger
}

func NewEdustemsClient(cfg *config.Config, log *logrus.Logger) *EdustemsClient {
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &EdustemsClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: transport,
		},
		log: log,
	}
}

// MakeRequest issues a GET with retry and exponential backoff. Transport
// errors, 429 and 5xx responses are retried; other 4xx responses fail
// immediately.
func (c *EdustemsClient) MakeRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.cfg.APIBaseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request to %s cancelled: %w", endpoint, ctx.Err())
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request for %s: %w", endpoint, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http client error on attempt %d: %w", attempt+1, err)
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil {
				lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			} else {
				lastErr = fmt.Errorf("HTTP %d: error reading body: %w", resp.StatusCode, readErr)
			}
		} else if resp.StatusCode >= 400 {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("HTTP %d: error reading error response body: %w", resp.StatusCode, readErr)
			}
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("error reading response body: %w", readErr)
			}
			return body, nil
		}

		if attempt < c.cfg.MaxRetries {
			delay := c.cfg.RetryDelay * time.Duration(1<<attempt)
			c.log.Warnf("Request to %s failed (attempt %d/%d): %v. Waiting %s before retrying...",
				endpoint, attempt+1, c.cfg.MaxRetries+1, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("request to %s cancelled during retry wait: %w", endpoint, ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", endpoint, c.cfg.MaxRetries+1, lastErr)
}

// FetchActiveStudents pulls the full active roster across all schools.
func (c *EdustemsClient) FetchActiveStudents(ctx context.Context) ([]models.StudentRecord, error) {
	params := url.Values{}
	params.Set("api-key", c.cfg.APIKey)
	params.Set("school_name", "ALL")

	body, err := c.MakeRequest(ctx, activeStudentsEndpoint, params)
	if err != nil {
		return nil, fmt.Errorf("error fetching active students: %w", err)
	}

	var resp models.APIResponse[models.StudentRecord]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing active students response: %w", err)
	}
	return resp.Data, nil
}

// FetchAssessmentMarks pulls marks for one school/year/type combination. The
// category decides which of the two marks endpoints is queried.
func (c *EdustemsClient) FetchAssessmentMarks(ctx context.Context, school, academicYear, assessmentType, category string) ([]models.AssessmentRecord, error) {
	params := url.Values{}
	params.Set("api-key", c.cfg.APIKey)
	params.Set("school_name", school)
	params.Set("academic_year", academicYear)
	params.Set("assessment_type", assessmentType)

	endpoint := schoolExamEndpoint
	if strings.EqualFold(category, CategoryStandardized) {
		endpoint = assessmentMarksEndpoint
	}

	body, err := c.MakeRequest(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s marks for %s/%s/%s: %w", category, school, academicYear, assessmentType, err)
	}

	var resp models.APIResponse[models.AssessmentRecord]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing marks response for %s/%s/%s: %w", school, academicYear, assessmentType, err)
	}
	return resp.Data, nil
}
