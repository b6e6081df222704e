package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// editTokenPattern matches the token the flow editor page embeds as an
// Angular constant.
var editTokenPattern = regexp.MustCompile(`app\.constant\(\s*["']token["']\s*,\s*["']([^"']+)["']\s*\)`)

// ListFlows returns the first page (up to 100) of contact flows whose name
// matches filter. Further pages are not requested.
func (c *Client) ListFlows(ctx context.Context, filter string) ([]FlowSummary, error) {
	const op = "list-flows"
	if err := c.authenticated(op); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, op, http.MethodGet, c.urls.search(filter), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.expectJSON(op, resp); err != nil {
		return nil, err
	}

	var page struct {
		Results []FlowSummary `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &FormatError{Op: op, Instance: c.session.Instance, Detail: "decode search results", Err: err}
	}

	log.FromContext(ctx).Debug("Listed flows", "instance", c.session.Instance, "filter", filter, "count", len(page.Results))
	return page.Results, nil
}

// GetFlow exports the flow identified by flowARN. An empty status means
// "published".
func (c *Client) GetFlow(ctx context.Context, flowARN, status string) (*Flow, error) {
	const op = "get-flow"
	if err := c.authenticated(op); err != nil {
		return nil, err
	}
	if _, err := parseFlowARN(flowARN); err != nil {
		return nil, opError(op, c.session.Instance, err)
	}
	if status == "" {
		status = defaultStatus
	}

	req, err := c.newRequest(ctx, op, http.MethodGet, c.urls.export(flowARN, status), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.expectJSON(op, resp); err != nil {
		return nil, err
	}

	var export struct {
		ARN     string `json:"arn"`
		Name    string `json:"name"`
		Status  string `json:"status"`
		Content string `json:"contactFlowContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		return nil, &FormatError{Op: op, Instance: c.session.Instance, Detail: "decode export", Err: err}
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(export.Content), &content); err != nil {
		return nil, &FormatError{Op: op, Instance: c.session.Instance, Detail: "decode flow content", Err: err}
	}

	if raw, ok := content["metadata"]; ok {
		metadata, err := mergeMetadata(raw)
		if err != nil {
			return nil, &FormatError{Op: op, Instance: c.session.Instance, Detail: "normalize metadata", Err: err}
		}
		content["metadata"] = metadata
	}

	if export.ARN == "" {
		export.ARN = flowARN
	}
	if export.Status == "" {
		export.Status = status
	}

	return &Flow{ARN: export.ARN, Name: export.Name, Status: export.Status, Content: content}, nil
}

// mergeMetadata accepts metadata either as one object or as a list of objects
// and returns a single object holding every key. Later keys win.
func mergeMetadata(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		merged := make(map[string]any)
		for i, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("metadata entry %d is %T, not an object", i, item)
			}
			for k, val := range entry {
				merged[k] = val
			}
		}
		return merged, nil
	default:
		return nil, fmt.Errorf("metadata is %T, not an object", raw)
	}
}

// UploadFlow saves content as the new body of the flow, publishing it when
// opts.Publish is set. Without opts.EditToken a token is scraped from the
// editor page first; if none is found nothing is uploaded.
func (c *Client) UploadFlow(ctx context.Context, flowARN string, content map[string]any, opts UploadOptions) error {
	const op = "upload-flow"
	if err := c.authenticated(op); err != nil {
		return err
	}
	if _, err := parseFlowARN(flowARN); err != nil {
		return opError(op, c.session.Instance, err)
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return opError(op, c.session.Instance, fmt.Errorf("encode flow content: %w", err))
	}

	token := opts.EditToken
	if token == "" {
		token, err = c.fetchEditToken(ctx, flowARN)
		if err != nil {
			return err
		}
	}

	body, err := json.Marshal(map[string]any{
		"arn":     flowARN,
		"token":   token,
		"content": string(encoded),
		"publish": opts.Publish,
	})
	if err != nil {
		return opError(op, c.session.Instance, err)
	}

	req, err := c.newRequest(ctx, op, http.MethodPost, c.urls.edit(flowARN), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.expectJSON(op, resp); err != nil {
		return err
	}

	var result struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &FormatError{Op: op, Instance: c.session.Instance, Detail: "decode upload result", Err: err}
	}
	if result.Success != nil && !*result.Success {
		return opError(op, c.session.Instance, fmt.Errorf("%w: %s", ErrUploadRejected, result.Message))
	}

	log.FromContext(ctx).Debug("Flow uploaded", "instance", c.session.Instance, "arn", flowARN, "publish", opts.Publish)
	return nil
}

// fetchEditToken loads the flow editor and pulls the edit token out of its
// inline scripts.
func (c *Client) fetchEditToken(ctx context.Context, flowARN string) (string, error) {
	const op = "edit-token"

	req, err := c.newRequest(ctx, op, http.MethodGet, c.urls.edit(flowARN), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", opError(op, c.session.Instance, fmt.Errorf("%w: %w", ErrEditToken, err))
	}

	var token string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := editTokenPattern.FindStringSubmatch(s.Text()); m != nil {
			token = m[1]
			return false
		}
		return true
	})
	if token == "" {
		return "", opError(op, c.session.Instance, ErrEditToken)
	}

	return token, nil
}
