package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
)

const maxUploadMemory = 8 << 20

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/webm": true,
}

// uploadMedia handles POST /media. The request is a multipart form with
// a single "file" part; the response carries the stored URL to embed in
// a post's media list.
func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httputil.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "Missing file part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		httputil.WriteBadRequest(w, "Unsupported media type")
		return
	}

	key := "uploads/" + uuid.NewString() + strings.ToLower(path.Ext(header.Filename))
	url, err := s.media.Upload(r.Context(), key, file, contentType)
	if err != nil {
		s.logger.WithError(err).Error("media upload failed")
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"key":          key,
		"url":          url,
		"content_type": contentType,
		"size":         header.Size,
	})
}
