package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/server/models"
	"github.com/dmitrijs2005/memestore/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for the form fields around the file.
const multipartOverhead = 1 << 20

type memeResponse struct {
	ID          int64  `json:"id"`
	OwnerID     string `json:"owner_id"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Visibility  bool   `json:"visibility"`
	CreatedAt   int64  `json:"created_at"`
}

func newMemeResponse(v *services.MemeView) memeResponse {
	return memeResponse{
		ID:          v.ID,
		OwnerID:     v.OwnerID,
		Description: v.Description,
		ImageURL:    v.ImageURL,
		Visibility:  v.Visibility,
		CreatedAt:   v.CreatedAt.Unix(),
	}
}

func newMemeList(views []*services.MemeView) []memeResponse {
	out := make([]memeResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newMemeResponse(v))
	}
	return out
}

type memeUpdateRequest struct {
	Description *string `json:"description"`
	Visibility  *bool   `json:"visibility"`
}

func validation(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, msg)
}

func parsePage(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	atoi := func(name string) (int, error) {
		s := q.Get(name)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, validation(name + " must be an integer")
		}
		if n == 0 {
			// zero would silently select the default
			return 0, validation(name + " must be >= 1")
		}
		return n, nil
	}

	page, err := atoi("page")
	if err != nil {
		return models.Page{}, err
	}
	size, err := atoi("page_size")
	if err != nil {
		return models.Page{}, err
	}
	return services.NewPage(page, size)
}

func memeID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "meme_id"), 10, 64)
	if err != nil || id < 1 {
		return 0, validation("meme_id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) listPublicMemes(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views, err := h.media.ListPublic(r.Context(), chi.URLParam(r, "user_id"), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemeList(views))
}

func (h *Handler) getPublicMeme(w http.ResponseWriter, r *http.Request) {
	id, err := memeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.media.GetPublic(r.Context(), chi.URLParam(r, "user_id"), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemeResponse(v))
}

func (h *Handler) listOwnMemes(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views, err := h.media.ListOwn(r.Context(), u.ID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemeList(views))
}

func (h *Handler) getOwnMeme(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	id, err := memeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.media.GetOwn(r.Context(), u.ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemeResponse(v))
}

// createMeme takes multipart/form-data with a "file" part and optional
// "description" and "visibility" fields. Visibility defaults to true.
func (h *Handler) createMeme(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	visibility := true
	if s := r.FormValue("visibility"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			h.fail(w, r, validation("visibility must be a boolean"))
			return
		}
		visibility = b
	}

	v, err := h.media.Create(r.Context(), u.ID, services.NewMeme{
		Description: r.FormValue("description"),
		Visibility:  visibility,
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMemeResponse(v))
}

func (h *Handler) updateMeme(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	id, err := memeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req memeUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.media.Update(r.Context(), u.ID, id, models.MemeUpdate{
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemeResponse(v))
}

func (h *Handler) deleteMeme(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	id, err := memeID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.media.Delete(r.Context(), u.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
