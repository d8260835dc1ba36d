package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/handlers/render"
	"github.com/nkiryanov/musicbox/internal/handlers/userctx"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/service/track"
)

const (
	maxUploadBytes = 200 << 20

	// Multipart parts above this size are spooled to disk
	uploadMemoryBytes = 32 << 20
)

type TrackResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	StreamURL   string    `json:"streamUrl"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newTrackResponse(t models.Track) TrackResponse {
	res := TrackResponse{
		ID:          t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		ContentType: t.ContentType,
		SizeBytes:   t.SizeBytes,
		StreamURL:   "/stream/tracks/" + path.Base(t.StorageKey),
		CreatedAt:   t.CreatedAt,
	}
	if t.CoverKey != "" {
		res.CoverURL = "/stream/album-art/" + path.Base(t.CoverKey)
	}
	return res
}

func handleUploadTrack(trackService trackService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(uploadMemoryBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.ServiceError(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			render.ServiceError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll() // nolint:errcheck

		audio, audioHeader, err := r.FormFile("file")
		if err != nil {
			render.ServiceError(w, "File is required", http.StatusBadRequest)
			return
		}
		defer audio.Close() // nolint:errcheck

		up := track.Upload{
			Title:  r.FormValue("title"),
			Artist: r.FormValue("artist"),
			Album:  r.FormValue("album"),
			Audio:  uploadedFile(audio, audioHeader),
		}

		cover, coverHeader, err := r.FormFile("cover")
		switch {
		case err == nil:
			defer cover.Close() // nolint:errcheck
			f := uploadedFile(cover, coverHeader)
			up.Cover = &f
		case errors.Is(err, http.ErrMissingFile):
		default:
			render.ServiceError(w, "Invalid cover", http.StatusBadRequest)
			return
		}

		created, err := trackService.Upload(r.Context(), user.ID, up)
		switch {
		case err == nil:
			render.JSONWithStatus(w, newTrackResponse(created), http.StatusCreated)
		case errors.Is(err, apperrors.ErrTrackAlreadyExists):
			render.ServiceError(w, "Track already uploaded", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUnsupportedMedia):
			render.ServiceError(w, "Unsupported media type", http.StatusUnsupportedMediaType)
		default:
			l.Error("Failed to upload track", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func uploadedFile(f multipart.File, h *multipart.FileHeader) track.File {
	return track.File{
		Name:        h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Size:        h.Size,
		Body:        f,
	}
}

func handleListTracks(trackService trackService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		tracks, err := trackService.List(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list tracks", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := make([]TrackResponse, 0, len(tracks))
		for _, t := range tracks {
			res = append(res, newTrackResponse(t))
		}
		render.JSON(w, res)
	})
}

func handleGetTrack(trackService trackService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		trackID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Track not found", http.StatusNotFound)
			return
		}

		t, err := trackService.Get(r.Context(), user.ID, trackID)
		switch {
		case err == nil:
			render.JSON(w, newTrackResponse(t))
		case errors.Is(err, apperrors.ErrTrackNotFound):
			render.ServiceError(w, "Track not found", http.StatusNotFound)
		default:
			l.Error("Failed to get track", "track_id", trackID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeleteTrack(trackService trackService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		trackID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Track not found", http.StatusNotFound)
			return
		}

		err = trackService.Delete(r.Context(), user.ID, trackID)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrTrackNotFound):
			render.ServiceError(w, "Track not found", http.StatusNotFound)
		default:
			l.Error("Failed to delete track", "track_id", trackID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
