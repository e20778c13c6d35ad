package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/domain"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/logger"
	"github.com/MrSnakeDoc/together/internal/utils"
)

// multipart overhead allowed on top of the image limit
const formOverhead = 1 << 20

type galleryData struct {
	Images   []domain.ImageAsset
	MaxBytes int64
}

func Gallery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		images, err := d.Gallery.List(r.Context())
		v := newView(d, w, r, "Gallery", nil)
		if err != nil {
			d.Logger.Error("failed to list images", logger.Error(err))
			v.Flash = domain.UserMessage(err)
		}
		v.Data = galleryData{Images: images, MaxBytes: d.Gallery.MaxBytes()}
		render(d, w, http.StatusOK, "gallery", v)
	}
}

func Upload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := d.Gallery.MaxBytes()
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				redirect(w, r, "/gallery", "Image too large: the limit is "+humanize.IBytes(uint64(limit)))
				return
			}
			redirect(w, r, "/gallery", "No file selected")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("image")
		if err != nil {
			redirect(w, r, "/gallery", "No file selected")
			return
		}
		defer utils.Close(file)

		// Sequential names keep the local gallery ordered; the store falls
		// back to a generated name when this one is taken.
		desired, err := d.Gallery.NextName(r.Context(), ".jpg")
		if err != nil {
			d.Logger.Warn("could not compute next image name", logger.Error(err))
			desired = ""
		}

		asset, err := d.Gallery.Upload(r.Context(), domain.Upload{Filename: header.Filename, Body: file}, desired)
		switch {
		case err == nil:
			d.Logger.Info("image upload succeeded", logger.String("filename", asset.Filename))
			redirect(w, r, "/gallery", "Photo uploaded")
		case domain.IsValidation(err):
			d.Logger.Warn("image upload rejected", logger.String("filename", header.Filename), logger.Error(err))
			redirect(w, r, "/gallery", "Upload rejected: "+domain.UserMessage(err))
		default:
			redirect(w, r, "/gallery", "Upload failed: "+domain.UserMessage(err))
		}
	}
}

func DeleteImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := domain.AssetID(r.PostFormValue("image"))
		err := d.Gallery.Delete(r.Context(), id)
		switch {
		case err == nil:
			redirect(w, r, "/gallery", "Photo deleted")
		case domain.IsNotFound(err):
			redirect(w, r, "/gallery", "Photo not found")
		default:
			redirect(w, r, "/gallery", "Could not delete the photo: "+domain.UserMessage(err))
		}
	}
}

// ServeImage streams one image. Seekable bodies (local files) go through
// http.ServeContent for range and conditional requests.
func ServeImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := domain.AssetID(chi.URLParam(r, "id"))
		blob, err := d.Gallery.Fetch(r.Context(), id)
		if err != nil {
			if domain.IsNotFound(err) {
				http.NotFound(w, r)
				return
			}
			d.Logger.Error("failed to fetch image", logger.String("id", id.String()), logger.Error(err))
			status := http.StatusInternalServerError
			if domain.IsUnavailable(err) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		defer utils.Close(blob.Body)

		w.Header().Set("Content-Type", blob.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if rs, ok := blob.Body.(io.ReadSeeker); ok {
			http.ServeContent(w, r, blob.Filename, blob.UpdatedAt, rs)
			return
		}
		if blob.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
		}
		if _, err := io.Copy(w, blob.Body); err != nil {
			d.Logger.Debug("image stream interrupted", logger.String("id", id.String()), logger.Error(err))
		}
	}
}
