package testhub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// GetSuiteData fetches the MBT composition of every run in a suite run. The
// server returns a map of run id to base64-encoded JSON blob; entries that
// fail to decode are skipped so one broken run cannot block the whole suite.
func (c *Client) GetSuiteData(ctx context.Context, suiteRunID int64) (map[int64]model.MbtComposition, error) {
	path := fmt.Sprintf("/suite_runs/%d/get_suite_data", suiteRunID)

	var raw map[string]string
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch suite data for suite run %d: %w", suiteRunID, err)
	}

	compositions := make(map[int64]model.MbtComposition, len(raw))
	for key, encoded := range raw {
		runID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			slog.Warn("skipping suite data entry with non-numeric run id", "key", key)
			continue
		}
		blob, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			slog.Warn("skipping suite data entry with invalid encoding", "run_id", runID, "error", err)
			continue
		}
		var comp model.MbtComposition
		if err := json.Unmarshal(blob, &comp); err != nil {
			slog.Warn("skipping suite data entry with invalid payload", "run_id", runID, "error", err)
			continue
		}
		compositions[runID] = comp
	}
	return compositions, nil
}

// IngestTestResults pushes a test result report to the server for ingestion.
func (c *Client) IngestTestResults(ctx context.Context, reportXML []byte) error {
	if err := c.do(ctx, http.MethodPost, "/test-results", nil, bytes.NewReader(reportXML), "application/xml", nil); err != nil {
		return fmt.Errorf("failed to ingest test results: %w", err)
	}
	return nil
}
