package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const imagenBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// Imagen calls the Imagen predict endpoint directly over REST.
type Imagen struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewImagen(apiKey string) *Imagen {
	return &Imagen{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    imagenBaseURL,
		apiKey:     apiKey,
	}
}

// Predict generates one 16:9 image for prompt and returns its bytes.
func (im *Imagen) Predict(ctx context.Context, model, prompt string) ([]byte, error) {
	if im.apiKey == "" {
		return nil, errors.New("imagen API key not configured")
	}

	reqBody := PredictRequest{
		Instances:  []PredictInstance{{Prompt: prompt}},
		Parameters: &PredictParameters{SampleCount: 1, AspectRatio: "16:9"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := im.baseURL + model + ":predict?key=" + im.apiKey
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagen request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("imagen returned status %d: %s", resp.StatusCode, string(body))
	}

	var predResp PredictResponse
	if err := json.Unmarshal(body, &predResp); err != nil {
		return nil, fmt.Errorf("parse imagen response: %w", err)
	}

	for _, p := range predResp.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("imagen returned no predictions")
}
