// Package media serves stored objects over HTTP with byte range support
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
)

const cacheControl = "public, max-age=31536000"

// How objects of some class are served
type Profile struct {
	Name string

	// Storage key prefix of the class, e.g. "tracks/"
	Prefix string

	// Used if object has no content type in storage
	DefaultContentType string

	// Honor Range header. If false objects are always served whole
	Ranges bool

	// Send Content-Disposition: inline on full responses
	Disposition bool
}

var (
	Track = Profile{
		Name:               "track",
		Prefix:             "tracks/",
		DefaultContentType: "audio/mpeg",
		Ranges:             true,
		Disposition:        true,
	}

	AlbumArt = Profile{
		Name:               "album-art",
		Prefix:             "album-art/",
		DefaultContentType: "image/jpeg",
	}
)

// Storage key of the object named name
func (p Profile) Key(name string) string {
	return p.Prefix + name
}

type objectStore interface {
	Stat(ctx context.Context, key string) (models.StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	GetRange(ctx context.Context, key string, start int64, end int64) (io.ReadCloser, error)
}

type Service struct {
	store  objectStore
	logger logger.Logger
}

func NewService(store objectStore, logger logger.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Opened object ready to be written to the client
// Body has to be closed by caller
type Stream struct {
	Object  models.StoredObject
	Profile Profile

	// Bytes selected. For full responses the whole object
	Range   ByteRange
	Partial bool

	Body io.ReadCloser
}

func (s *Stream) Status() int {
	if s.Partial {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

func (s *Stream) ContentLength() int64 {
	if s.Partial {
		return s.Range.Length()
	}
	return s.Object.Size
}

// Set response headers for the stream
func (s *Stream) WriteHeaders(h http.Header) {
	contentType := s.Object.ContentType
	if contentType == "" {
		contentType = s.Profile.DefaultContentType
	}

	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(s.ContentLength(), 10))
	h.Set("Cache-Control", cacheControl)

	if s.Profile.Ranges {
		h.Set("Accept-Ranges", "bytes")
	}

	switch {
	case s.Partial:
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.Range.Start, s.Range.End, s.Object.Size))
	case s.Profile.Disposition:
		h.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, dispositionName(s.Object.Key)))
	}
}

func (s *Stream) Close() error {
	return s.Body.Close()
}

// Resolve object and range without reading its content
// Body of the returned stream is empty. Errors are the same as Open returns
func (s *Service) Head(ctx context.Context, p Profile, name string, rangeHeader string) (*Stream, error) {
	if !validName(name) {
		return nil, fmt.Errorf("bad object name %q: %w", name, apperrors.ErrObjectNotFound)
	}
	key := p.Key(name)

	obj, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	st := &Stream{
		Object:  obj,
		Profile: p,
		Range:   ByteRange{Start: 0, End: obj.Size - 1},
		Body:    http.NoBody,
	}

	if p.Ranges && rangeHeader != "" {
		r, err := ParseRange(rangeHeader, obj.Size)
		if err != nil {
			s.logger.Debug("Range not satisfiable", "key", key, "range", rangeHeader, "size", obj.Size)
			return nil, err
		}
		st.Range = r
		st.Partial = true
	}

	return st, nil
}

// Open object of the profile by its name for reading
// rangeHeader may be empty. Ranges are ignored by profiles that do not support them
//
// Returns apperrors.ErrObjectNotFound if object not exists
// and *RangeError (apperrors.ErrRangeNotSatisfiable) if the range could not be served.
func (s *Service) Open(ctx context.Context, p Profile, name string, rangeHeader string) (*Stream, error) {
	st, err := s.Head(ctx, p, name, rangeHeader)
	if err != nil {
		return nil, err
	}
	key := p.Key(name)

	if st.Partial {
		st.Body, err = s.store.GetRange(ctx, key, st.Range.Start, st.Range.End)
		if err != nil {
			return nil, err
		}

		s.logger.Debug("Streaming partial object", "key", key, "start", st.Range.Start, "end", st.Range.End, "size", st.Object.Size)
		return st, nil
	}

	st.Body, err = s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Streaming object", "key", key, "size", st.Object.Size)
	return st, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}

func dispositionName(key string) string {
	return strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(path.Base(key))
}
