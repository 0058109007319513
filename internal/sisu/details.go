package sisu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/models"
)

// detailResult is the outcome of a single detail task.
type detailResult struct {
	record models.ClientRecord
	err    error
}

// fetchDetails runs the detail calls in sequential batches of BatchSize. All
// tasks of a batch finish before the next batch starts. The returned slice
// keeps list order and leaves out records whose detail call failed.
func (c *Client) fetchDetails(ctx context.Context, listed []models.ClientRecord) ([]models.ClientRecord, error) {
	size := c.cfg.BatchSize
	total := (len(listed) + size - 1) / size
	records := make([]models.ClientRecord, 0, len(listed))

	for start, batchNo := 0, 1; start < len(listed); start, batchNo = start+size, batchNo+1 {
		end := start + size
		if end > len(listed) {
			end = len(listed)
		}
		batch := listed[start:end]
		results := make([]detailResult, len(batch))

		var g errgroup.Group
		for i, entry := range batch {
			g.Go(func() error {
				rec, err := c.fetchDetail(ctx, entry.ClientID)
				results[i] = detailResult{record: rec, err: err}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "fetching client details")
		}

		dropped := 0
		for _, r := range results {
			if r.err != nil {
				dropped++
				c.logger.Warn().Err(r.err).Msg("Dropping client after detail failure")
				continue
			}
			records = append(records, r.record)
		}

		c.logger.Debug().
			Int("batch", batchNo).
			Int("batches", total).
			Int("dropped", dropped).
			Msg("Fetched details for batch")
	}

	c.logger.Info().
		Int("listed", len(listed)).
		Int("detailed", len(records)).
		Msg("Fetched client details")

	return records, nil
}

func (c *Client) fetchDetail(ctx context.Context, clientID int64) (models.ClientRecord, error) {
	var rec models.ClientRecord

	if err := c.limiter.Wait(ctx); err != nil {
		return rec, errors.NewDetailFetchError(clientID, 0, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	url := c.cfg.BaseURL + fmt.Sprintf(detailPath, clientID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return rec, errors.NewDetailFetchError(clientID, 0, err)
	}
	req.Header.Set("Authorization", c.cfg.AuthHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return rec, errors.NewDetailFetchError(clientID, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rec, errors.NewDetailFetchError(clientID, resp.StatusCode, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return rec, errors.NewDetailFetchError(clientID, resp.StatusCode, fmt.Errorf("decoding detail: %w", err))
	}
	if rec.ClientID == 0 {
		rec.ClientID = clientID
	}
	return rec, nil
}
