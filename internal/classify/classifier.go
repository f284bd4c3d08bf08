// Package classify talks to the external classifier service. Classification
// is best-effort: any failure degrades to the Unknown sentinel instead of
// blocking a notification.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Label is a classification result.
type Label struct {
	Name       string
	Confidence float64 // 0..1
}

// Unknown is the sentinel returned when classification fails.
var Unknown = Label{Name: "Unknown", Confidence: 0}

// ConfidenceString renders the confidence the way the operator sees it:
// "0%" for the Unknown sentinel, "87.31%" otherwise.
func (l Label) ConfidenceString() string {
	if l.Confidence <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", l.Confidence*100)
}

// Classifier labels a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

// HTTPClassifier calls a hosted classifier over JSON.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier returns a classifier bound to url with the given request
// timeout.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Label, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Unknown, fmt.Errorf("encoding classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Unknown, fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Unknown, fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unknown, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Unknown, fmt.Errorf("decoding classify response: %w", err)
	}
	if result.Label == "" {
		return Unknown, fmt.Errorf("classifier returned empty label")
	}

	return Label{Name: result.Label, Confidence: result.Confidence}, nil
}
