package cache

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
)

// MediaFetcher is the slice of the backend surface the resolver needs.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, chatID, messageID string) ([]byte, error)
	CachedMediaPath(ctx context.Context, messageID string) (string, error)
}

// Resolver turns a message id into a local file path, trying the cheapest
// source first: the local media index, then the sent-media cache, then the
// backend's own cache, then a full download.
type Resolver struct {
	media   *Media
	sent    *SentMedia
	backend MediaFetcher
	logger  *zap.Logger
}

// NewResolver creates a media resolver.
func NewResolver(m *Media, sm *SentMedia, be MediaFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{media: m, sent: sm, backend: be, logger: logger}
}

// Resolve returns a local path for the message's media, downloading and
// indexing it when nothing local exists yet.
func (r *Resolver) Resolve(ctx context.Context, chatID, msgID, mimeType string) (string, error) {
	if p, err := r.media.Path(msgID); err == nil && p != "" {
		return p, nil
	}

	if r.sent != nil {
		if b64, ok := r.sent.Get(msgID); ok {
			data, err := base64.StdEncoding.DecodeString(b64)
			if err == nil {
				return r.media.Put(chatID, msgID, mimeType, data)
			}
			r.logger.Warn("sent-media cache entry undecodable", zap.String("msg_id", msgID), zap.Error(err))
		}
	}

	// The backend runs on the same host; a path from its cache is usable
	// directly and saves the transfer.
	if p, err := r.backend.CachedMediaPath(ctx, msgID); err == nil && p != "" {
		return p, nil
	}

	data, err := r.backend.DownloadMedia(ctx, chatID, msgID)
	if err != nil {
		return "", fmt.Errorf("download media %s: %w", msgID, err)
	}
	return r.media.Put(chatID, msgID, mimeType, data)
}
