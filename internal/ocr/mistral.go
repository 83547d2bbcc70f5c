package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	// Error bodies are echoed into the error message up to this size.
	maxErrorBody = 512
)

// MistralOCR reads scanned PDF reports through the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// MistralOption configures a MistralOCR.
type MistralOption func(*MistralOCR)

// WithEndpoint overrides the OCR endpoint.
func WithEndpoint(endpoint string) MistralOption {
	return func(m *MistralOCR) { m.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) MistralOption {
	return func(m *MistralOCR) { m.client = c }
}

// NewMistralOCR creates a MistralOCR. An empty model selects mistral-ocr-latest.
func NewMistralOCR(apiKey, model string, opts ...MistralOption) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	m := &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// ExtractText uploads the PDF inline as a data URL and returns the markdown
// of every non-blank page in page order.
func (m *MistralOCR) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	body, err := m.requestBody(pdfPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral response")
	}

	sort.SliceStable(parsed.Pages, func(i, j int) bool {
		return parsed.Pages[i].Index < parsed.Pages[j].Index
	})
	pages := make([]string, len(parsed.Pages))
	for i, p := range parsed.Pages {
		pages[i] = p.Markdown
	}
	return joinPages(pages), nil
}

func (m *MistralOCR) requestBody(pdfPath string) ([]byte, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read PDF %s", pdfPath)
	}
	body, err := json.Marshal(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}
	return body, nil
}
