package gemini

// --- Request types for the Imagen REST predict endpoint ---

type PredictRequest struct {
	Instances  []PredictInstance  `json:"instances"`
	Parameters *PredictParameters `json:"parameters,omitempty"`
}

type PredictInstance struct {
	Prompt string `json:"prompt"`
}

type PredictParameters struct {
	SampleCount int    `json:"sampleCount,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// --- Response types ---

type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

type Prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}
