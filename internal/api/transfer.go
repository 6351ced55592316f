package api

import (
	"bytes"
	"net/http"

	"github.com/starford/othala/internal/importer"
)

const maxImportBytes = 50 << 20 // 50 MB

// Import handles POST /api/import (multipart/form-data, field "file").
//
//	@Summary		Import a Netscape bookmark file into a fresh stash folder
//	@Tags			transfer
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Netscape bookmark HTML"
//	@Success		201		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	entries, err := importer.ParseNetscape(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("could not parse bookmark file"))
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("no bookmarks in file"))
		return
	}

	root, err := h.model.EnsureStashRoot(r.Context())
	if err != nil {
		writeError(w, "import", err)
		return
	}
	folder, err := h.model.CreateFolder(r.Context(), root.ID, 0, importer.ImportTitle(header.Filename))
	if err != nil {
		writeError(w, "import", err)
		return
	}
	created, err := importer.CreateEntries(r.Context(), h.model, h.icons, folder.ID, entries)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResponse{Folder: string(folder.ID), Created: created})
}

// Export handles GET /api/export.
//
//	@Summary		Download the whole tree as a Netscape bookmark file
//	@Tags			transfer
//	@Produce		html
//	@Success		200	{file}	binary
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := importer.WriteNetscape(&buf, h.model, h.model.Root().ID); err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bookmarks.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
