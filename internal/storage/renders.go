// Package storage persists generated renders in a Supabase storage bucket.
// Synthesizer result URLs expire; uploading gives the ledger a durable URL.
package storage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

type RenderStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewRenderStore(supabaseURL, serviceKey, bucket string) (*RenderStore, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &RenderStore{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// UploadRender stores one render and returns its public URL. The path keys
// by user, session and ledger id so re-running a job overwrites its own
// artifact and nothing else.
func (s *RenderStore) UploadRender(userID uuid.UUID, sessionID, historyID int64, data []byte) (string, error) {
	path := fmt.Sprintf("users/%s/sessions/%d/%d.png", userID.String(), sessionID, historyID)

	contentType := "image/png"
	upsert := true
	_, err := s.client.UploadFile(s.bucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload render: %w", err)
	}

	return s.PublicURL(path), nil
}

func (s *RenderStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path)
}
