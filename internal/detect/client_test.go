package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detect/faces" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		json.NewEncoder(w).Encode(detectResponse{
			FacesCount: 2,
			Faces: []Face{
				{FaceIndex: 0, Dim: 2, Embedding: []float32{0.1, 0.2}, DetScore: 0.98},
				{FaceIndex: 1, Dim: 2, Embedding: []float32{0.3, 0.4}, DetScore: 0.91},
			},
			Model: "test",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, 2)
	faces, err := c.DetectFaces(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("got %d faces; want 2", len(faces))
	}
	if faces[0].FaceIndex != 0 || faces[1].FaceIndex != 1 {
		t.Errorf("faces out of detection order: %+v", faces)
	}
	if faces[0].Embedding[0] != 0.1 {
		t.Errorf("embedding[0] = %v; want 0.1", faces[0].Embedding[0])
	}
}

func TestDetectFacesNoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(detectResponse{FacesCount: 0, Faces: nil})
	}))
	defer server.Close()

	c := NewClient(server.URL, 128)
	faces, err := c.DetectFaces(context.Background(), []byte("not really an image"))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("got %d faces; want 0", len(faces))
	}
}

func TestDetectFacesDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(detectResponse{
			FacesCount: 1,
			Faces:      []Face{{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 2, 3}}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, 128)
	if _, err := c.DetectFaces(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestDetectFacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, 128)
	_, err := c.DetectFaces(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error %q does not mention status", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
		{"too short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType = %q; want %q", got, tc.expected)
			}
		})
	}
}
