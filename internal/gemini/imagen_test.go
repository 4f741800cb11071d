package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestImagenPredict(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var gotPath, gotKey string
	var gotReq PredictRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(PredictResponse{Predictions: []Prediction{
			{BytesBase64Encoded: base64.StdEncoding.EncodeToString(png), MimeType: "image/png"},
		}})
	}))
	defer srv.Close()

	im := NewImagen("secret")
	im.baseURL = srv.URL + "/models/"

	data, err := im.Predict(context.Background(), "imagen-3.0-generate-002", "a calm city")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("data = %v, want %v", data, png)
	}
	if gotPath != "/models/imagen-3.0-generate-002:predict" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("key = %q", gotKey)
	}
	if len(gotReq.Instances) != 1 || gotReq.Instances[0].Prompt != "a calm city" {
		t.Errorf("instances = %+v", gotReq.Instances)
	}
	if gotReq.Parameters == nil || gotReq.Parameters.SampleCount != 1 {
		t.Errorf("parameters = %+v", gotReq.Parameters)
	}
}

func TestImagenPredictErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"forbidden", http.StatusForbidden, `{"error":{"message":"denied"}}`, "status 403"},
		{"bad json", http.StatusOK, `not json`, "parse imagen response"},
		{"empty", http.StatusOK, `{"predictions":[]}`, "no predictions"},
		{"bad base64", http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"!!!"}]}`, "decode image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			im := NewImagen("secret")
			im.baseURL = srv.URL + "/"
			_, err := im.Predict(context.Background(), "imagen-3.0-generate-002", "p")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestImagenWithoutKey(t *testing.T) {
	if _, err := NewImagen("").Predict(context.Background(), "imagen-3.0-generate-002", "p"); err == nil {
		t.Error("expected error without key")
	}
}
