package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kmbp.app/ratingbot/pkg/storage"
)

// FileLocator resolves a chat platform file id to a downloadable URL.
type FileLocator interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// PhotoMirror copies chat photos to public storage.
type PhotoMirror interface {
	Mirror(ctx context.Context, projectID uint, fileID string) (string, error)
	Remove(ctx context.Context, imageURL string) error
}

type cloudinaryMirror struct {
	locator FileLocator
	storage storage.ImageStorage
	folder  string
	client  *http.Client
}

func NewPhotoMirror(locator FileLocator, imageStorage storage.ImageStorage, folder string) PhotoMirror {
	return &cloudinaryMirror{
		locator: locator,
		storage: imageStorage,
		folder:  folder,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *cloudinaryMirror) Mirror(ctx context.Context, projectID uint, fileID string) (string, error) {
	fileURL, err := m.locator.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download photo: unexpected status %d", resp.StatusCode)
	}

	return m.storage.UploadImage(ctx, resp.Body, m.folder, fmt.Sprintf("project-%d.jpg", projectID))
}

func (m *cloudinaryMirror) Remove(ctx context.Context, imageURL string) error {
	return m.storage.DeleteImage(ctx, imageURL)
}
