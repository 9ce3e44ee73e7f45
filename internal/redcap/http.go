package redcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"redmig/internal/domain"
)

// HTTPClient talks to a real destination endpoint. All calls are single
// form-encoded POSTs against the API root, authenticated by an opaque
// project token.
type HTTPClient struct {
	apiURL  string
	token   string
	httpc   *http.Client
	verify  bool
	overall string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient swaps the underlying http.Client (timeouts, transport).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.httpc = c }
}

// WithReadBackVerification controls whether SubmitRecord re-exports the
// record after import to populate Confirmation.Fields. On by default;
// disable to halve API traffic when post-transfer validation is off.
func WithReadBackVerification(on bool) HTTPOption {
	return func(h *HTTPClient) { h.verify = on }
}

// WithOverwriteBehavior sets the destination-side overwrite mode sent with
// every import ("normal" or "overwrite").
func WithOverwriteBehavior(behavior string) HTTPOption {
	return func(h *HTTPClient) { h.overall = behavior }
}

// NewHTTP builds a client for the given API URL and token.
func NewHTTP(apiURL, token string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		apiURL:  apiURL,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		verify:  true,
		overall: "overwrite",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPClient) SubmitRecord(ctx context.Context, key domain.Key, values map[string]string) (*Confirmation, error) {
	payload := make(map[string]string, len(values)+3)
	for k, v := range values {
		payload[k] = v
	}
	payload["record_id"] = key.RecordID
	if key.Event != "" {
		payload["redcap_event_name"] = key.Event
	}
	if key.Instance > 1 {
		payload["redcap_repeat_instance"] = strconv.Itoa(key.Instance)
	}
	data, err := json.Marshal([]map[string]string{payload})
	if err != nil {
		return nil, fmt.Errorf("encode record payload: %w", err)
	}

	form := url.Values{
		"token":             {h.token},
		"content":           {"record"},
		"format":            {"json"},
		"type":              {"flat"},
		"data":              {string(data)},
		"overwriteBehavior": {h.overall},
		"returnContent":     {"count"},
		"returnFormat":      {"json"},
	}
	body, err := h.post(ctx, form)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Count int `json:"count"`
	}
	count := 1
	if err := json.Unmarshal(body, &resp); err == nil && resp.Count > 0 {
		count = resp.Count
	}

	conf := &Confirmation{Count: count}
	if h.verify {
		fields, err := h.ExportRecord(ctx, key)
		if err != nil {
			return nil, err
		}
		conf.Fields = fields
	}
	return conf, nil
}

func (h *HTTPClient) RecordExists(ctx context.Context, key domain.Key) (bool, error) {
	fields, err := h.ExportRecord(ctx, key)
	if err != nil {
		return false, err
	}
	for name, v := range fields {
		if name == "record_id" || strings.HasPrefix(name, "redcap_") {
			continue
		}
		if v != "" {
			return true, nil
		}
	}
	return false, nil
}

func (h *HTTPClient) ExportRecord(ctx context.Context, key domain.Key) (map[string]string, error) {
	form := url.Values{
		"token":        {h.token},
		"content":      {"record"},
		"format":       {"json"},
		"type":         {"flat"},
		"records":      {key.RecordID},
		"returnFormat": {"json"},
	}
	if key.Event != "" {
		form.Set("events", key.Event)
	}
	body, err := h.post(ctx, form)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &RemoteError{Message: "record export is not valid JSON: " + err.Error()}
	}
	out := make(map[string]string)
	for _, row := range rows {
		if key.Instance > 1 {
			if inst, ok := row["redcap_repeat_instance"]; ok && fmt.Sprint(inst) != strconv.Itoa(key.Instance) {
				continue
			}
		}
		for k, v := range row {
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (h *HTTPClient) Dictionary(ctx context.Context) ([]byte, error) {
	form := url.Values{
		"token":        {h.token},
		"content":      {"metadata"},
		"format":       {"json"},
		"returnFormat": {"json"},
	}
	return h.post(ctx, form)
}

func (h *HTTPClient) ProjectInfo(ctx context.Context) (ProjectInfo, error) {
	form := url.Values{
		"token":        {h.token},
		"content":      {"project"},
		"format":       {"json"},
		"returnFormat": {"json"},
	}
	body, err := h.post(ctx, form)
	if err != nil {
		return ProjectInfo{}, err
	}
	var info ProjectInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return ProjectInfo{}, &RemoteError{Message: "project info is not valid JSON: " + err.Error()}
	}

	if info.Longitudinal != 0 {
		events, err := h.exportEvents(ctx)
		if err != nil {
			return ProjectInfo{}, err
		}
		info.Events = events
	}
	forms, err := h.exportRepeatingForms(ctx)
	if err != nil {
		return ProjectInfo{}, err
	}
	info.RepeatingForms = forms
	return info, nil
}

func (h *HTTPClient) exportEvents(ctx context.Context) ([]string, error) {
	form := url.Values{
		"token":        {h.token},
		"content":      {"event"},
		"format":       {"json"},
		"returnFormat": {"json"},
	}
	body, err := h.post(ctx, form)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UniqueEventName string `json:"unique_event_name"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &RemoteError{Message: "event export is not valid JSON: " + err.Error()}
	}
	events := make([]string, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.UniqueEventName)
	}
	return events, nil
}

func (h *HTTPClient) exportRepeatingForms(ctx context.Context) ([]string, error) {
	form := url.Values{
		"token":        {h.token},
		"content":      {"repeatingFormsEvents"},
		"format":       {"json"},
		"returnFormat": {"json"},
	}
	body, err := h.post(ctx, form)
	if err != nil {
		// Projects without the repeating-instruments feature reject this
		// export with a client error; treat that as no repeating forms.
		var remote *RemoteError
		if errors.As(err, &remote) && !remote.Transient && remote.StatusCode >= 400 && remote.StatusCode < 500 {
			return nil, nil
		}
		return nil, err
	}
	var rows []struct {
		FormName string `json:"form_name"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &RemoteError{Message: "repeating forms export is not valid JSON: " + err.Error()}
	}
	forms := make([]string, 0, len(rows))
	for _, r := range rows {
		forms = append(forms, r.FormName)
	}
	return forms, nil
}

// post runs one form-encoded API call, mapping HTTP status and transport
// failures onto RemoteError with the transient flag the orchestrator keys on.
func (h *HTTPClient) post(ctx context.Context, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpc.Do(req)
	if err != nil {
		// Network-level failures (timeouts, resets) are worth retrying.
		return nil, &RemoteError{Transient: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &RemoteError{Transient: true, StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	remoteErr := &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		remoteErr.Transient = true
	}
	return nil, remoteErr
}
