// Package cache holds the client-side media cache: an on-disk blob store
// indexed in SQLite, plus a short-lived in-memory cache for just-sent media.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Media resolves message media to local files. Downloads are performed by
// the backend; this cache only stores payloads already handed to the client.
type Media struct {
	db  *DB
	dir string
}

// NewMedia creates a media cache writing blobs under dir.
func NewMedia(db *DB, dir string) (*Media, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Media{db: db, dir: dir}, nil
}

// Put stores a media payload for a message and returns its local path.
// Re-putting the same message id overwrites the index entry.
func (m *Media) Put(chatID, msgID, mimeType string, data []byte) (string, error) {
	name := hex.EncodeToString(hashID(msgID)) + extFor(mimeType)
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write media blob: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err := m.db.Exec(`
		INSERT INTO media (msg_id, chat_id, path, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			path = excluded.path,
			mime_type = excluded.mime_type,
			size = excluded.size`,
		msgID, chatID, path, mimeType, len(data), now)
	if err != nil {
		return "", fmt.Errorf("index media: %w", err)
	}
	return path, nil
}

// Path returns the cached local path for a message's media, or "" when the
// media has not been cached. A stale index entry whose file is gone counts
// as a miss.
func (m *Media) Path(msgID string) (string, error) {
	var path string
	err := m.db.QueryRow(`SELECT path FROM media WHERE msg_id = ?`, msgID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// PutAvatar stores a chat avatar and returns its local path.
func (m *Media) PutAvatar(chatID string, data []byte) (string, error) {
	name := "avatar-" + hex.EncodeToString(hashID(chatID)) + ".jpg"
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err := m.db.Exec(`
		INSERT INTO avatars (chat_id, path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET path = excluded.path, updated_at = excluded.updated_at`,
		chatID, path, now)
	if err != nil {
		return "", fmt.Errorf("index avatar: %w", err)
	}
	return path, nil
}

// AvatarPath returns the cached avatar path for a chat, or "".
func (m *Media) AvatarPath(chatID string) (string, error) {
	var path string
	err := m.db.QueryRow(`SELECT path FROM avatars WHERE chat_id = ?`, chatID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func hashID(id string) []byte {
	sum := sha256.Sum256([]byte(id))
	return sum[:8]
}

func extFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
