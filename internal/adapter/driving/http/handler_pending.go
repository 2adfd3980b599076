package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// maxBodyBytes bounds request bodies for edit and decision endpoints.
const maxBodyBytes = 1 << 20

// EditRequest is the body of PATCH /pending/{id} and the optional body of
// POST /pending/{id}/approve. Absent fields are left unchanged.
type EditRequest struct {
	Comment     *string           `json:"comment"`
	Summary     *string           `json:"summary"`
	Annotations *[]AnnotationJSON `json:"annotations"`
	Reset       bool              `json:"reset"`
}

func (req EditRequest) edits() model.PendingEdits {
	var e model.PendingEdits
	e.Comment = req.Comment
	e.Summary = req.Summary
	if req.Annotations != nil {
		e.Annotations = fromAnnotationsJSON(*req.Annotations)
		e.AnnotationsEdited = true
	}
	return e
}

func (req EditRequest) validate() string {
	if req.Annotations == nil {
		return ""
	}
	for i, a := range *req.Annotations {
		if msg := validateAnnotation(a); msg != "" {
			return "annotation " + strconv.Itoa(i) + ": " + msg
		}
	}
	return ""
}

// RejectRequest is the body of POST /pending/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListPending returns every pending approval awaiting a decision.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	rows, err := h.queue.ListPending(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to list pending approvals")
		return
	}

	resp := make([]PendingResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toPendingResponse(row))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPending returns a single pending approval of any status.
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	row, err := h.queue.GetPending(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "failed to get pending approval", "pending_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toPendingResponse(row))
}

// EditPending saves human edits to an open pending approval. With reset set,
// the saved edits are replaced rather than merged, in one state machine call.
func (h *Handler) EditPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	edit := h.queue.Edit
	if req.Reset {
		edit = h.queue.ReplaceEdits
	}
	row, err := edit(r.Context(), id, req.edits())
	if err != nil {
		h.writeDomainError(w, err, "failed to edit pending approval", "pending_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toPendingResponse(row))
}

// ReplaceAnnotation replaces one inline comment of the final proposal.
func (h *Handler) ReplaceAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	var req AnnotationJSON
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateAnnotation(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	annotation := model.Annotation(req)
	row, err := h.queue.EditAnnotation(r.Context(), id, index, &annotation)
	if err != nil {
		h.writeDomainError(w, err, "failed to edit annotation", "pending_id", id, "index", index)
		return
	}

	writeJSON(w, http.StatusOK, toPendingResponse(row))
}

// DeleteAnnotation removes one inline comment from the final proposal.
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	row, err := h.queue.EditAnnotation(r.Context(), id, index, nil)
	if err != nil {
		h.writeDomainError(w, err, "failed to delete annotation", "pending_id", id, "index", index)
		return
	}

	writeJSON(w, http.StatusOK, toPendingResponse(row))
}

// ApprovePending posts the final proposal to GitHub and records the review.
// An optional body applies last-minute edits.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	action, err := h.queue.Approve(r.Context(), id, req.edits())
	if err != nil {
		h.writeDomainError(w, err, "failed to approve pending approval", "pending_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toActionResponse(action))
}

// RejectPending closes a pending approval without posting anything.
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.queue.Reject(r.Context(), id, strings.TrimSpace(req.Reason)); err != nil {
		h.writeDomainError(w, err, "failed to reject pending approval", "pending_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid pending approval id")
		return 0, false
	}
	return id, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid annotation index")
		return 0, false
	}
	return index, true
}

func validateAnnotation(a AnnotationJSON) string {
	switch {
	case strings.TrimSpace(a.File) == "":
		return "file is required"
	case a.Line < 1:
		return "line must be positive"
	case strings.TrimSpace(a.Message) == "":
		return "message is required"
	}
	return ""
}
