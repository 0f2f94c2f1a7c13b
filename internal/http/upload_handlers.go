package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"image-drop/internal/domain"
	"image-drop/internal/storage"
	"image-drop/internal/upload"
)

const (
	storageFailedMessage = "Could not save the file, please try again."
	sniffBytes           = 3072
	mirrorTimeout        = 30 * time.Second
	textPlain            = "text/plain; charset=utf-8"
)

func (h *Handler) uploadForm(c *gin.Context) {
	if _, ok := h.requireUser(c); !ok {
		return
	}
	h.render(c, http.StatusOK, "upload.tmpl", gin.H{"title": "Upload"})
}

func (h *Handler) upload(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	log := h.log.WithField("user_id", user.ID)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		if isTooLarge(err) {
			uploads.WithLabelValues("too_large").Inc()
			h.rejectUpload(c, http.StatusRequestEntityTooLarge, "The file is too large.")
			return
		}
		uploads.WithLabelValues("rejected").Inc()
		h.render(c, http.StatusBadRequest, "upload.tmpl", gin.H{"title": "Upload", "flashes": formErrors(err)})
		return
	}

	if !validCSRF(c, form.CSRFToken) {
		uploads.WithLabelValues("csrf").Inc()
		log.Warn("upload csrf check failed")
		h.rejectUpload(c, http.StatusForbidden, csrfFailed)
		return
	}

	declared := form.File.Filename
	name := storage.Sanitize(declared)
	if err := validateUpload(declared, name); err != nil {
		uploads.WithLabelValues("rejected").Inc()
		log.WithField("filename", declared).Info("upload rejected")
		h.rejectUpload(c, http.StatusBadRequest, rejectReason(err))
		return
	}

	body, err := h.openUpload(form.File)
	if err != nil {
		uploads.WithLabelValues("rejected").Inc()
		if errors.Is(err, upload.ErrRejected) {
			log.WithError(err).Info("upload rejected")
			h.rejectUpload(c, http.StatusBadRequest, rejectReason(err))
			return
		}
		log.WithError(err).Error("open upload")
		h.rejectUpload(c, http.StatusBadRequest, "The file could not be read, please try again.")
		return
	}
	defer body.Close()

	stored, err := h.cfg.Uploads.Store(c.Request.Context(), name, body)
	if err != nil {
		uploads.WithLabelValues("error").Inc()
		logStorageError(log, err, name)
		h.rejectUpload(c, http.StatusInternalServerError, storageFailedMessage)
		return
	}

	uploads.WithLabelValues("stored").Inc()
	log.WithFields(logrus.Fields{"filename": stored, "size": form.File.Size}).Info("upload stored")

	h.mirror(c.Request.Context(), log, form.File, stored)

	h.setFlash(c, "success", "File Saved")
	c.Redirect(http.StatusSeeOther, "/upload")
}

// validateUpload checks the declared name and the sanitized name, so a name
// whose extension is lost to sanitizing is refused too.
func validateUpload(declared, sanitized string) error {
	if _, err := upload.Validate(declared); err != nil {
		return err
	}
	if _, err := upload.Validate(sanitized); err != nil {
		return err
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// openUpload returns the uploaded bytes, sniffed first when content checks are on.
func (h *Handler) openUpload(fh *multipart.FileHeader) (io.ReadCloser, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	if !h.cfg.SniffContent {
		return f, nil
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	head = head[:n]
	if _, err := upload.Sniff(head); err != nil {
		f.Close()
		return nil, err
	}
	return readCloser{Reader: io.MultiReader(bytes.NewReader(head), f), Closer: f}, nil
}

func (h *Handler) mirror(ctx context.Context, log *logrus.Entry, fh *multipart.FileHeader, stored string) {
	if h.cfg.Mirror == nil {
		return
	}
	f, err := fh.Open()
	if err != nil {
		log.WithError(err).Warn("mirror upload: reopen")
		return
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	location, err := h.cfg.Mirror.Mirror(ctx, stored, f)
	if err != nil {
		mirrored.WithLabelValues("error").Inc()
		log.WithError(err).WithField("filename", stored).Warn("mirror upload")
		return
	}
	mirrored.WithLabelValues("ok").Inc()
	log.WithField("location", location).Debug("upload mirrored")
}

func (h *Handler) rejectUpload(c *gin.Context, status int, message string) {
	h.render(c, status, "upload.tmpl", gin.H{
		"title":   "Upload",
		"flashes": notice("danger", message),
	})
}

func (h *Handler) files(c *gin.Context) {
	if _, ok := h.requireUser(c); !ok {
		return
	}

	names, err := h.cfg.Uploads.List(c.Request.Context())
	if err != nil {
		logStorageError(h.log.WithField("route", "files"), err, "")
		h.renderError(c)
		return
	}
	sort.Strings(names)

	images := make([]domain.UploadedFile, 0, len(names))
	for _, name := range names {
		ext, _ := upload.Validate(name)
		images = append(images, domain.UploadedFile{Name: name, Extension: ext})
	}

	h.render(c, http.StatusOK, "files.tmpl", gin.H{"title": "Files", "images": images})
}

func (h *Handler) uploadedFile(c *gin.Context) {
	if !h.cfg.PublicFetch {
		if _, ok := h.requireUser(c); !ok {
			return
		}
	}
	name := c.Param("filename")
	contentType, ok := upload.ContentType(name)
	if !ok {
		h.renderNotFound(c)
		return
	}
	h.serveFrom(c, h.cfg.Uploads, name, contentType)
}

func (h *Handler) textAsset(c *gin.Context, name string) {
	h.serveFrom(c, h.cfg.Static, name, textPlain)
}

func (h *Handler) serveFrom(c *gin.Context, gw storage.Gateway, name, contentType string) {
	data, err := gw.Fetch(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.renderNotFound(c)
			return
		}
		logStorageError(h.log.WithField("route", c.FullPath()), err, name)
		h.renderError(c)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// textAssetName accepts "/<name>.txt" with a single non-empty path segment.
func textAssetName(path string) (string, bool) {
	name, ok := strings.CutPrefix(path, "/")
	if !ok || strings.Contains(name, "/") {
		return "", false
	}
	if !strings.HasSuffix(name, ".txt") || name == ".txt" {
		return "", false
	}
	return name, true
}

func rejectReason(err error) string {
	var rejected *upload.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	return upload.RejectMessage
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func logStorageError(log *logrus.Entry, err error, name string) {
	entry := log.WithError(err)
	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		entry = entry.WithField("code", storageErr.Code)
	}
	if name != "" {
		entry = entry.WithField("filename", name)
	}
	entry.Error("storage failure")
}
