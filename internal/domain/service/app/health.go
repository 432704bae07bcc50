package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"apphost/pkg/log"
	"apphost/pkg/retry"
)

// StatusPath is served by the runtime of every app.
const StatusPath = "/__status"

type statusResponse struct {
	FolderName string `json:"folderName"`
}

// VerifyHealthy polls the app's status endpoint until it answers. It
// reports false when the app answers with another identity or never answers
// within the retry budget. Other errors, such as an unknown app, are
// returned.
func (s *Service) VerifyHealthy(ctx context.Context, folderName string) (bool, error) {
	port, err := s.AppPort(ctx, folderName)
	if err != nil {
		return false, err
	}
	url := "http://127.0.0.1:" + strconv.Itoa(port) + StatusPath

	healthy, err := retry.Do(ctx, s.health, func(ctx context.Context) (bool, error) {
		status, err := s.fetchStatus(ctx, url)
		if err != nil {
			return false, retry.Again(err)
		}
		return status.FolderName == folderName, nil
	})
	if errors.Is(err, retry.ErrTimeout) {
		return false, nil
	}
	return healthy, err
}

// CheckHealth runs VerifyHealthy and only logs the outcome.
func (s *Service) CheckHealth(ctx context.Context, folderName string) bool {
	healthy, err := s.VerifyHealthy(ctx, folderName)
	switch {
	case err != nil:
		s.metrics.HealthCheck("error")
		log.Warn("Health check failed", "folder_name", folderName, "error", err)
	case !healthy:
		s.metrics.HealthCheck("unhealthy")
		log.Warn("App is not healthy", "folder_name", folderName)
	default:
		s.metrics.HealthCheck("healthy")
		log.Debug("App is healthy", "folder_name", folderName)
	}
	return healthy
}

func (s *Service) fetchStatus(ctx context.Context, url string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
