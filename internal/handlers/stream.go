package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/handlers/render"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/service/media"
)

const streamChunkSize = 32 << 10

func handleStream(mediaService mediaService, profile media.Profile, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("key")

		// GET patterns match HEAD too. Headers only, object content is not fetched
		open := mediaService.Open
		if r.Method == http.MethodHead {
			open = mediaService.Head
		}

		st, err := open(r.Context(), profile, name, r.Header.Get("Range"))
		if err != nil {
			var rangeErr *media.RangeError
			switch {
			case errors.As(err, &rangeErr):
				w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(rangeErr.Size, 10))
				w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			case errors.Is(err, apperrors.ErrObjectNotFound):
				render.ServiceError(w, "File not found", http.StatusNotFound)
			default:
				l.Error("Failed to open stream", "profile", profile.Name, "key", name, "error", err)
				render.ServiceError(w, "Failed to stream file", http.StatusInternalServerError)
			}
			return
		}
		defer st.Close() // nolint:errcheck

		if r.Method == http.MethodHead {
			st.WriteHeaders(w.Header())
			w.WriteHeader(st.Status())
			return
		}

		writeStream(w, r, st, l)
	})
}

// Status and headers are sent only after the first chunk is read,
// so a storage failure before that still gets a proper JSON error
func writeStream(w http.ResponseWriter, r *http.Request, st *media.Stream, l logger.Logger) {
	buf := make([]byte, streamChunkSize)

	n, err := io.ReadAtLeast(st.Body, buf, 1)
	if err != nil && !errors.Is(err, io.EOF) {
		l.Error("Failed to read stream", "key", st.Object.Key, "error", err)
		render.ServiceError(w, "Failed to stream file", http.StatusInternalServerError)
		return
	}

	st.WriteHeaders(w.Header())
	w.WriteHeader(st.Status())
	if n == 0 {
		return
	}

	written, err := w.Write(buf[:n])
	if err == nil {
		var copied int64
		copied, err = io.CopyBuffer(w, st.Body, buf)
		written += int(copied)
	}

	if err != nil {
		// Headers are gone already, the client sees a truncated body
		if r.Context().Err() != nil {
			l.Info("Client went away while streaming", "key", st.Object.Key, "written", written)
			return
		}
		l.Error("Stream interrupted", "key", st.Object.Key, "written", written, "expected", st.ContentLength(), "error", err)
	}
}
