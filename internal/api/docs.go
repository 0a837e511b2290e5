package api

import (
	"net/http"
	"path/filepath"
	"strings"
)

// @Title: List Docs
// @Route: GET /api/docs
// @Description: Names of the AsciiDoc documents served by the node
// @Response: ["api.adoc", "operations.adoc"]
func (s *Service) HandleDocs(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "docs are not configured")
		return
	}
	names, err := s.docs.ListDocs()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list docs")
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

// @Title: View Doc
// @Route: GET /api/docs/view?name=api.adoc
// @Description: One document rendered to HTML
// @Response: text/html fragment
func (s *Service) HandleDocView(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "docs are not configured")
		return
	}
	name := filepath.Base(r.URL.Query().Get("name"))
	if !strings.HasSuffix(name, ".adoc") {
		s.writeError(w, http.StatusBadRequest, "name must be an .adoc file")
		return
	}
	html, err := s.docs.GetDoc(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "doc not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}
