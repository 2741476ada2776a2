// Package server exposes the document store over HTTP: blob save/get/delete
// translated onto the storage engine, plus the catalog's document records.
// It is a thin translation layer; all storage semantics live below it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"docstore/internal/auth"
	"docstore/internal/catalog"
	"docstore/internal/docstore"
)

// BlobStore is the storage engine surface the facade needs.
type BlobStore interface {
	SavePDF(ctx context.Context, docID string, content []byte) (string, error)
	SaveImage(ctx context.Context, docID string, page int, content []byte) (string, error)
	PDFPath(ctx context.Context, docID string) (string, error)
	ImagePath(ctx context.Context, docID string, page int) (string, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// Server translates HTTP requests into BlobStore and Catalog calls.
type Server struct {
	store   BlobStore
	catalog *catalog.Catalog
	authn   auth.Engine
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithVersion overrides the version string reported in response metadata.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithAuthEngine enables request authentication for every route.
func WithAuthEngine(engine auth.Engine) Option {
	return func(s *Server) {
		s.authn = engine
	}
}

// NewServer creates a Server over the given store and catalog.
func NewServer(store BlobStore, cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{
		store:   store,
		catalog: cat,
		version: "1.0.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler with logging, request-id and
// optional authentication middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("PUT /pdf/{docID}", s.handleSavePDF)
	mux.HandleFunc("GET /pdf/{docID}", s.handleGetPDF)
	mux.HandleFunc("PUT /image/{docID}/{page}", s.handleSaveImage)
	mux.HandleFunc("GET /image/{docID}/{page}", s.handleGetImage)
	mux.HandleFunc("DELETE /document/{docID}", s.handleDeleteDocument)

	mux.HandleFunc("POST /documents", s.handleCreateDocument)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("GET /documents/{docID}", s.handleGetDocument)
	mux.HandleFunc("POST /documents/{docID}/status", s.handleSetStatus)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	if s.authn != nil {
		handler = s.requireAuth(handler)
	}
	return RequestID(LogRequest(handler))
}

func (s *Server) meta() Meta {
	return Meta{Timestamp: time.Now().UTC(), Version: s.version}
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data, Meta: s.meta()}); err != nil {
		slog.Error("Encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorInfo{Code: code, Message: message},
		Meta:  s.meta(),
	})
}

// writeOpError maps storage and catalog errors onto wire-level responses.
// Not-found is always distinguishable from a server-side failure.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrPDFNotFound),
		errors.Is(err, docstore.ErrImageNotFound),
		errors.Is(err, catalog.ErrNotFound):
		s.writeError(w, "NotFound", err.Error(), http.StatusNotFound)
	case errors.Is(err, docstore.ErrInvalidDocID),
		errors.Is(err, docstore.ErrInvalidPage),
		errors.Is(err, catalog.ErrBadTransition):
		s.writeError(w, "InvalidRequest", err.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrExists):
		s.writeError(w, "Conflict", err.Error(), http.StatusConflict)
	default:
		slog.Error("Operation failed", "err", err)
		s.writeError(w, "InternalError", "we encountered an internal error", http.StatusInternalServerError)
	}
}

// readContent accepts either a raw request body or a multipart form with a
// "file" field, which is what the ingestion workers send.
func readContent(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

func (s *Server) handleSavePDF(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")

	content, err := readContent(r)
	if err != nil {
		s.writeError(w, "InvalidRequest", "failed to read request body", http.StatusBadRequest)
		return
	}

	path, err := s.store.SavePDF(r.Context(), docID, content)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, SavePDFData{DocID: docID, PDFPath: path})
}

func (s *Server) handleGetPDF(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")

	path, err := s.store.PDFPath(r.Context(), docID)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.serveBlob(w, path, "application/pdf", docID+".pdf")
}

func (s *Server) handleSaveImage(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 0 {
		s.writeError(w, "InvalidRequest", "page must be a non-negative integer", http.StatusBadRequest)
		return
	}

	content, err := readContent(r)
	if err != nil {
		s.writeError(w, "InvalidRequest", "failed to read request body", http.StatusBadRequest)
		return
	}

	path, err := s.store.SaveImage(r.Context(), docID, page, content)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, SaveImageData{DocID: docID, PageNumber: page, ImagePath: path})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 0 {
		s.writeError(w, "InvalidRequest", "page must be a non-negative integer", http.StatusBadRequest)
		return
	}

	path, err := s.store.ImagePath(r.Context(), docID, page)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.serveBlob(w, path, "image/jpeg", fmt.Sprintf("%s_p%d.jpg", docID, page))
}

// serveBlob streams a stored file to the client. The path comes from the
// store, which has already confirmed existence; a racing delete between the
// check and the open surfaces as an internal error, the documented cost of
// lock-free reads.
func (s *Server) serveBlob(w http.ResponseWriter, path, contentType, filename string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Open blob", "path", path, "err", err)
		s.writeError(w, "InternalError", "blob payload missing", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		slog.Error("Stream blob", "path", path, "err", err)
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")

	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		s.writeOpError(w, err)
		return
	}

	// The catalog record goes with the blobs; absence is fine.
	if s.catalog != nil {
		if err := s.catalog.DeleteDocument(r.Context(), docID); err != nil {
			s.writeOpError(w, err)
			return
		}
	}

	s.writeData(w, http.StatusOK, DeleteDocumentData{
		DocID:  docID,
		Detail: "Document deleted successfully.",
	})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "InvalidRequest", "malformed request body", http.StatusBadRequest)
		return
	}

	if err := docstore.ValidateDocID(req.DocID); err != nil {
		s.writeOpError(w, err)
		return
	}
	if req.FileName == "" {
		s.writeError(w, "InvalidRequest", "file_name must not be empty", http.StatusBadRequest)
		return
	}

	doc, err := s.catalog.CreateDocument(r.Context(), req.DocID, req.FileName)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeData(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListDocuments(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	if list == nil {
		list = []catalog.Summary{}
	}
	s.writeData(w, http.StatusOK, list)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.GetDocument(r.Context(), r.PathValue("docID"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, doc)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "InvalidRequest", "malformed request body", http.StatusBadRequest)
		return
	}

	doc, err := s.catalog.SetStatus(r.Context(), r.PathValue("docID"), req.Status)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, doc)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
