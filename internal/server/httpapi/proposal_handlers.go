package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/services"
)

const (
	fileField       = "proposal_file"
	multipartMemory = 8 << 20
	// room for the text fields and multipart framing on top of the document
	formOverhead = 1 << 20
)

type setStatusRequest struct {
	Status        string  `json:"status"`
	ReviewResults *string `json:"review_results"`
}

type setReviewRequest struct {
	ReviewResults string `json:"review_results"`
}

// parseProposalForm reads the applicant fields and the optional document
// from a multipart/form-data body.
func (s *HTTPServer) parseProposalForm(w http.ResponseWriter, r *http.Request) (services.ProposalFields, *attachments.Upload, error) {
	limit := s.maxUploadSize + formOverhead
	if r.ContentLength > limit {
		return services.ProposalFields{}, nil, fmt.Errorf("%w: request exceeds the upload limit", common.ErrFileTooLarge)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return services.ProposalFields{}, nil, fmt.Errorf("%w: request exceeds the upload limit", common.ErrFileTooLarge)
		}
		return services.ProposalFields{}, nil, fmt.Errorf("%w: invalid multipart form", errBadRequest)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fields := services.ProposalFields{
		FullName:    r.FormValue("full_name"),
		Email:       r.FormValue("email"),
		Affiliation: r.FormValue("affiliation"),
		PhoneNumber: r.FormValue("phone_number"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return fields, nil, nil
		}
		return fields, nil, fmt.Errorf("%w: invalid %s", errBadRequest, fileField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fields, nil, fmt.Errorf("%w: read %s", errBadRequest, fileField)
	}

	return fields, &attachments.Upload{Name: header.Filename, Data: data}, nil
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, upload, err := s.parseProposalForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.proposals.Create(r.Context(), sessionEmail(r.Context()), fields, upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *HTTPServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	fields, upload, err := s.parseProposalForm(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.proposals.Edit(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context()), fields, upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.proposals.Delete(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.proposals.Get(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleListOwn(w http.ResponseWriter, r *http.Request) {
	list, err := s.proposals.ListForUser(r.Context(), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, services.FilterProposals(list, q.Get("status"), q.Get("q"), services.ScopeUser))
}

func (s *HTTPServer) handleOwnStats(w http.ResponseWriter, r *http.Request) {
	list, err := s.proposals.ListForUser(r.Context(), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ComputeStats(list))
}

// handleDocument redirects to a presigned URL when the store offers one and
// streams the file otherwise.
func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.proposals.OpenDocument(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if doc.URL != "" {
		http.Redirect(w, r, doc.URL, http.StatusFound)
		return
	}
	defer doc.Body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(doc.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, doc.Body); err != nil {
		s.logger.Warn(r.Context(), "document stream interrupted", "name", doc.Name, "error", err)
	}
}

func (s *HTTPServer) handleListAll(w http.ResponseWriter, r *http.Request) {
	list, err := s.proposals.ListAll(r.Context(), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, services.FilterProposals(list, q.Get("status"), q.Get("q"), services.ScopeAdmin))
}

func (s *HTTPServer) handleAllStats(w http.ResponseWriter, r *http.Request) {
	list, err := s.proposals.ListAll(r.Context(), sessionEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ComputeStats(list))
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.proposals.SetStatus(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context()),
		models.Status(req.Status), req.ReviewResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleSetReview(w http.ResponseWriter, r *http.Request) {
	var req setReviewRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.proposals.SetReviewResults(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context()), req.ReviewResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.proposals.AdminDelete(r.Context(), chi.URLParam(r, "id"), sessionEmail(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
