package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestReadImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "png", data: pngHeader},
		{name: "empty", data: nil, wantErr: ErrMissingImage},
		{name: "text", data: []byte("hola mundo"), wantErr: ErrNotImage},
		{name: "too large", data: append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...), wantErr: ErrImageTooLarge},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img, err := ReadImage(bytes.NewReader(tt.data), "foto.png")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadImage: %v", err)
			}
			if img.ContentType != "image/png" {
				t.Fatalf("expected image/png, got %s", img.ContentType)
			}
		})
	}
}

func TestImageKey(t *testing.T) {
	t.Parallel()

	img := &Image{ContentType: "image/jpeg", Filename: `C:\fotos\Torre Rosa Montessori.JPEG`}
	key := img.Key(time.UnixMilli(1700000000000))
	if key != "products/1700000000000-torre-rosa-montessori.jpg" {
		t.Fatalf("unexpected key %q", key)
	}

	img = &Image{ContentType: "image/png", Filename: "¿?.png"}
	if key := img.Key(time.UnixMilli(1)); key != "products/1-imagen.png" {
		t.Fatalf("unexpected fallback key %q", key)
	}
}

func TestLocalSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	url, err := local.Save(context.Background(), "products/1-torre.png", "image/png", pngHeader)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "/uploads/products/1-torre.png" {
		t.Fatalf("unexpected url %q", url)
	}
	written, err := os.ReadFile(filepath.Join(dir, "products", "1-torre.png"))
	if err != nil || !bytes.Equal(written, pngHeader) {
		t.Fatalf("unexpected file contents, err=%v", err)
	}

	url, err = local.Save(context.Background(), "../../escape.png", "image/png", pngHeader)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "/uploads/escape.png" {
		t.Fatalf("expected traversal to be contained, got %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
		t.Fatalf("expected file inside upload dir: %v", err)
	}
}

func TestS3Save(t *testing.T) {
	t.Parallel()

	var gotPath, gotType, gotCache string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotCache = r.Header.Get("Cache-Control")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	store, err := NewS3(context.Background(), S3Config{
		Bucket:    "kuma-test",
		Region:    "us-east-1",
		Endpoint:  server.URL,
		AccessKey: "test",
		SecretKey: "test-secret",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	url, err := store.Save(context.Background(), "products/1-torre.png", "image/png", pngHeader)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if gotPath != "/kuma-test/products/1-torre.png" {
		t.Fatalf("unexpected object path %q", gotPath)
	}
	if gotType != "image/png" || !strings.Contains(gotCache, "immutable") {
		t.Fatalf("unexpected headers type=%q cache=%q", gotType, gotCache)
	}
	if !bytes.Equal(gotBody, pngHeader) {
		t.Fatalf("unexpected body")
	}
	if url != server.URL+"/kuma-test/products/1-torre.png" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestNewS3PublicURL(t *testing.T) {
	t.Parallel()

	store, err := NewS3(context.Background(), S3Config{Bucket: "kuma", Region: "sa-east-1", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if store.publicURL != "https://kuma.s3.sa-east-1.amazonaws.com" {
		t.Fatalf("unexpected public url %q", store.publicURL)
	}

	store, err = NewS3(context.Background(), S3Config{Bucket: "kuma", PublicURL: "https://cdn.kuma.com.ar/", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if store.publicURL != "https://cdn.kuma.com.ar" {
		t.Fatalf("unexpected public url %q", store.publicURL)
	}

	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
