package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// maxUploadBytes caps image uploads at 5 MB.
const maxUploadBytes = 5 << 20

// imageExtensions maps the accepted sniffed content types to the extension
// used for the stored object key.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func uploadImage(w http.ResponseWriter, r *http.Request) {
	if uploads == nil {
		respondError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	// Leave headroom for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			respondError(w, http.StatusBadRequest, "image must not be larger than 5 MB")
			return
		}
		respondError(w, http.StatusBadRequest, "could not parse multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, `an "image" file field is required`)
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		respondError(w, http.StatusBadRequest, "image must not be larger than 5 MB")
		return
	}

	// Sniff the type from the bytes, the client's header is not trusted.
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		respondServerError(w, r, "Reading upload", err)
		return
	}
	contentType := http.DetectContentType(head[:n])

	ext, ok := imageExtensions[contentType]
	if !ok {
		respondError(w, http.StatusBadRequest, "unsupported image type, use JPEG, PNG, GIF or WebP")
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondServerError(w, r, "Rewinding upload", err)
		return
	}

	key := fmt.Sprintf("images/%s%s", uuid.NewString(), ext)
	url, err := uploads.Upload(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		respondServerError(w, r, "Storing upload", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"url":         url,
		"key":         key,
		"size":        header.Size,
		"contentType": contentType,
	})
}
