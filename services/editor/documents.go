package editor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

// HandleCreateDocument stores an uploaded VRM file after checking it parses.
func (s *Service) HandleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		s.writeServiceError(w, errMissing("content"))
		return
	}

	_, warnings, err := vrm.ParseDocument(req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	doc, err := s.repo.Create(r.Context(), req.Name, req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log.Info().Str("id", doc.ID).Int("warnings", len(warnings)).Msg("Document created")

	if warnings == nil {
		warnings = []vrm.Warning{}
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateDocumentResponse{Document: *doc, Warnings: warnings})
}

// HandleGetDocument returns the current in-memory state of a document.
func (s *Service) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	view := DocumentView{ID: sess.ID, Name: sess.Name, Version: sess.host.Version(), Warnings: sess.Warnings}
	var err error
	sess.coord.View(func(m *vrm.Model) {
		doc := m.Snapshot()
		if view.Pre, err = toDTOs(doc.Pre); err != nil {
			return
		}
		if view.Post, err = toDTOs(doc.Post); err != nil {
			return
		}
		view.HTML = doc.HTML
		if doc.HasScript {
			view.Script = &doc.Script
		}
		view.Dirty = m.IsDirty()
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view.State = sess.coord.State().String()
	if lastErr := sess.LastError(); lastErr != nil {
		view.LastError = lastErr.Error()
	}
	if view.Warnings == nil {
		view.Warnings = []vrm.Warning{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(view)
}

// HandleExportDocument regenerates the whole file from the model.
func (s *Service) HandleExportDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	var content string
	sess.coord.View(func(m *vrm.Model) {
		content = vrm.RenderDocument(m.Snapshot())
	})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ExportResponse{ID: sess.ID, Content: content})
}

// HandleDiagnostics lists dangling connections, duplicate ids and parse warnings.
func (s *Service) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	diag := Diagnostics{Warnings: sess.Warnings}
	sess.coord.View(func(m *vrm.Model) {
		diag.Dangling = m.FindDanglingConnections()
		diag.Duplicates = m.FindDuplicateIDs()
	})
	if diag.Warnings == nil {
		diag.Warnings = []vrm.Warning{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(diag)
}

// HandleAddComponent appends a component to a section, optionally with a
// freshly allocated id.
func (s *Service) HandleAddComponent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	var req AddComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := fromDTO(req.Component)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var added vrm.Component
	err = sess.coord.Do(func(m *vrm.Model) error {
		if req.AllocateID {
			c.ID = m.NextID()
		}
		if err := m.Add(c); err != nil {
			return err
		}
		var err error
		added, err = m.Get(c.Section, c.ID)
		return err
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	dto, err := toDTO(added)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dto)
}

// HandleUpdateComponents applies a batch of full component records. The
// batch joins the current commit window.
func (s *Service) HandleUpdateComponents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	var req UpdateComponentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Components) == 0 {
		s.writeServiceError(w, errMissing("components"))
		return
	}
	components := make([]vrm.Component, 0, len(req.Components))
	for _, dto := range req.Components {
		c, err := fromDTO(dto)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		components = append(components, c)
	}

	if err := sess.coord.Submit(components...); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"updated": len(components), "state": sess.coord.State().String()})
}

// HandleRemoveComponent deletes a component. With detach=true every
// connection pointing at it is cleared in the same batch.
func (s *Service) HandleRemoveComponent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	section, valid := vrm.ParseSection(vars["section"])
	if !valid {
		s.writeServiceError(w, errInvalid("section"))
		return
	}
	cid, err := strconv.Atoi(vars["cid"])
	if err != nil {
		s.writeServiceError(w, errInvalid("component id"))
		return
	}
	detach := false
	if v := r.URL.Query().Get("detach"); v != "" {
		if detach, err = strconv.ParseBool(v); err != nil {
			s.writeServiceError(w, errInvalid("detach"))
			return
		}
	}

	detached := []int{}
	err = sess.coord.Do(func(m *vrm.Model) error {
		if err := m.Remove(section, cid); err != nil {
			return err
		}
		if detach {
			detached = m.DetachConnections(section, cid)
		}
		return nil
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"removed": cid, "detached": detached})
}

// HandleUpdateContent replaces the html text or the script sub-block.
func (s *Service) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	name, err := vrm.ParseContentBlock(mux.Vars(r)["name"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := sess.coord.Do(func(m *vrm.Model) error { return m.UpdateContent(name, req.Text) }); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"content": name, "state": sess.coord.State().String()})
}

// HandleFlush commits pending edits without waiting for the debounce window.
func (s *Service) HandleFlush(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	if err := sess.coord.Flush(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(FlushResponse{Version: sess.host.Version(), State: sess.coord.State().String()})
}

func (s *Service) openSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]
	s.log.Debug().Str("id", id).Str("method", r.Method).Str("path", r.URL.Path).Msg("Document request")

	sess, err := s.session(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	return sess, true
}

// writeServiceError maps domain errors to HTTP statuses.
func (s *Service) writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr *validationError
		perr *vrm.StructuralParseError
	)
	switch {
	case errors.Is(err, vrm.ErrCommitFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &perr):
		writeError(w, http.StatusUnprocessableEntity, perr.Error())
	case errors.Is(err, ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, vrm.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vrm.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, vrm.ErrValuesMismatch), errors.Is(err, vrm.ErrInvalidSection), errors.Is(err, vrm.ErrUnknownContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vrm.ErrCoordinatorDone):
		writeError(w, http.StatusServiceUnavailable, "document is closing")
	default:
		s.log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

type validationError struct {
	field string
	kind  string
}

func (e *validationError) Error() string {
	if e.kind == "missing" {
		return e.field + " is required"
	}
	return e.field + " is invalid"
}

func errMissing(field string) error { return &validationError{field: field, kind: "missing"} }
func errInvalid(field string) error { return &validationError{field: field, kind: "invalid"} }
