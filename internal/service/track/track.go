package track

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/repository"
	"github.com/nkiryanov/musicbox/internal/service/media"
)

type objectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Uploaded file
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type Upload struct {
	Title  string
	Artist string
	Album  string

	Audio File
	Cover *File // optional
}

type TrackService struct {
	trackRepo repository.TrackRepo
	store     objectStore
	logger    logger.Logger
}

func NewService(trackRepo repository.TrackRepo, store objectStore, l logger.Logger) *TrackService {
	return &TrackService{trackRepo: trackRepo, store: store, logger: l}
}

// Store audio (and cover if any) and record the track
// The same audio uploaded twice by one user returns apperrors.ErrTrackAlreadyExists
func (s *TrackService) Upload(ctx context.Context, userID uuid.UUID, up Upload) (models.Track, error) {
	audioType, err := contentType(up.Audio, media.Track.DefaultContentType, "audio/")
	if err != nil {
		return models.Track{}, err
	}

	hash, err := contentHash(up.Audio.Body)
	if err != nil {
		return models.Track{}, err
	}

	tags, err := readTags(up.Audio.Body)
	if err != nil {
		return models.Track{}, err
	}

	track := models.Track{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       firstOf(up.Title, tags.Title),
		Artist:      firstOf(up.Artist, tags.Artist),
		Album:       firstOf(up.Album, tags.Album),
		ContentType: audioType,
		SizeBytes:   up.Audio.Size,
		ContentHash: hash,
	}
	if track.Title == "" {
		track.Title = strings.TrimSuffix(path.Base(up.Audio.Name), path.Ext(up.Audio.Name))
	}

	track.StorageKey = media.Track.Key(objectName(up.Audio.Name, audioType))
	if err := s.store.Put(ctx, track.StorageKey, up.Audio.Body, up.Audio.Size, audioType); err != nil {
		return models.Track{}, fmt.Errorf("can't store audio. Err: %w", err)
	}
	uploaded := []string{track.StorageKey}

	cover, coverType, err := s.pickCover(up.Cover, tags)
	if err != nil {
		s.removeObjects(ctx, uploaded)
		return models.Track{}, err
	}

	if cover != nil {
		track.CoverKey = media.AlbumArt.Key(objectName(cover.Name, coverType))
		if err := s.store.Put(ctx, track.CoverKey, cover.Body, cover.Size, coverType); err != nil {
			s.removeObjects(ctx, uploaded)
			return models.Track{}, fmt.Errorf("can't store cover. Err: %w", err)
		}
		uploaded = append(uploaded, track.CoverKey)
	}

	created, err := s.trackRepo.Create(ctx, track)
	if err != nil {
		s.removeObjects(ctx, uploaded)
		if errors.Is(err, apperrors.ErrTrackAlreadyExists) {
			return models.Track{}, err
		}
		return models.Track{}, fmt.Errorf("can't create track. Err: %w", err)
	}

	s.logger.Info("Track uploaded", "track_id", created.ID, "user_id", userID, "size", created.SizeBytes)
	return created, nil
}

// Uploaded cover wins over the picture embedded into the audio
// Embedded picture of unsupported type is skipped, uploaded one is an error
func (s *TrackService) pickCover(uploaded *File, tags audioTags) (*File, string, error) {
	if uploaded != nil {
		ct, err := contentType(*uploaded, media.AlbumArt.DefaultContentType, "image/")
		if err != nil {
			return nil, "", err
		}
		return uploaded, ct, nil
	}

	embedded := tags.cover()
	if embedded == nil {
		return nil, "", nil
	}
	ct, err := contentType(*embedded, media.AlbumArt.DefaultContentType, "image/")
	if err != nil {
		s.logger.Info("Embedded picture skipped", "error", err)
		return nil, "", nil
	}
	return embedded, ct, nil
}

func (s *TrackService) List(ctx context.Context, userID uuid.UUID) ([]models.Track, error) {
	return s.trackRepo.List(ctx, userID)
}

func (s *TrackService) Get(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error) {
	return s.trackRepo.Get(ctx, userID, trackID)
}

// Delete track record and its objects
// Objects removal failures are logged only: the track is gone for the user anyway
func (s *TrackService) Delete(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) error {
	track, err := s.trackRepo.Delete(ctx, userID, trackID)
	if err != nil {
		return err
	}

	keys := []string{track.StorageKey}
	if track.CoverKey != "" {
		keys = append(keys, track.CoverKey)
	}
	s.removeObjects(ctx, keys)

	s.logger.Info("Track deleted", "track_id", trackID, "user_id", userID)
	return nil
}

func (s *TrackService) removeObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Error("Failed to delete object", "key", key, "error", err)
		}
	}
}

// Hex sha256 of the content. Body is rewound afterwards
func contentHash(body io.ReadSeeker) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", fmt.Errorf("can't read upload. Err: %w", err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("can't rewind upload. Err: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Content type from the upload or by file extension
// Has to be of the expected class, e.g. "audio/"
func contentType(f File, def string, class string) (string, error) {
	ct := f.ContentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	} else {
		ct = ""
	}

	if ct == "" || ct == "application/octet-stream" {
		ct = def
		if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(f.Name))); byExt != "" {
			ct, _, _ = mime.ParseMediaType(byExt)
		}
	}

	if !strings.HasPrefix(ct, class) {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedMedia, ct)
	}
	return ct, nil
}

// Random object name keeping file extension
func objectName(filename string, contentType string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if !safeExt(ext) {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 && safeExt(exts[0]) {
			ext = exts[0]
		}
	}
	return uuid.NewString() + ext
}

func safeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 || ext[0] != '.' {
		return false
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
