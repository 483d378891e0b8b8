// Package d1 counts records through the Cloudflare D1 HTTP query API.
package d1

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/oracle"
)

// DefaultBaseURL is the Cloudflare API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// DefaultQuery counts the live lessons.
const DefaultQuery = "SELECT COUNT(*) as count FROM lessons"

// Options configures an Oracle.
type Options struct {
	BaseURL    string
	AccountID  string
	DatabaseID string
	APIToken   string
	Query      string
	Column     string
	HTTPClient *http.Client
	Codec      codec.Codec
}

// Oracle implements oracle.CountOracle against the D1 query endpoint.
type Oracle struct {
	opts Options
}

// New creates a D1 oracle.
func New(accountID, databaseID, apiToken string, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		AccountID:  accountID,
		DatabaseID: databaseID,
		APIToken:   apiToken,
		Query:      DefaultQuery,
		Column:     "count",
		HTTPClient: http.DefaultClient,
		Codec:      codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{opts: opts}
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type queryResponse struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
	Result  []struct {
		Results []map[string]any `json:"results"`
		Success bool             `json:"success"`
	} `json:"result"`
}

func (o *Oracle) endpoint() string {
	return fmt.Sprintf("%s/accounts/%s/d1/database/%s/query",
		strings.TrimRight(o.opts.BaseURL, "/"),
		url.PathEscape(o.opts.AccountID),
		url.PathEscape(o.opts.DatabaseID))
}

// Count implements oracle.CountOracle.
func (o *Oracle) Count(ctx context.Context) (int64, error) {
	body, err := o.opts.Codec.Marshal(queryRequest{SQL: o.opts.Query})
	if err != nil {
		return 0, oracle.Unavailablef("d1: encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint(), bytes.NewReader(body))
	if err != nil {
		return 0, oracle.Unavailablef("d1: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.opts.APIToken)

	resp, err := o.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, oracle.Unavailablef("d1: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, oracle.Unavailablef("d1: read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, oracle.Unavailablef("d1: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var qr queryResponse
	if err := o.opts.Codec.Unmarshal(data, &qr); err != nil {
		return 0, oracle.Unavailablef("d1: decode response: %v", err)
	}
	if !qr.Success {
		if len(qr.Errors) > 0 {
			return 0, oracle.Unavailablef("d1: api error %d: %s", qr.Errors[0].Code, qr.Errors[0].Message)
		}
		return 0, oracle.Unavailablef("d1: query failed")
	}
	if len(qr.Result) == 0 || len(qr.Result[0].Results) == 0 {
		return 0, oracle.Unavailablef("d1: empty result")
	}

	n, err := oracle.RowCount(qr.Result[0].Results[0], o.opts.Column)
	if err != nil {
		return 0, fmt.Errorf("d1: %w", err)
	}
	return n, nil
}
