package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
	"github.com/nourselim0/http-process-wrapper/internal/supervisor"
)

type ProcHandler struct {
	sup    *supervisor.Supervisor
	events *service.EventRecorder
}

func NewProcHandler(sup *supervisor.Supervisor, events *service.EventRecorder) *ProcHandler {
	return &ProcHandler{
		sup:    sup,
		events: events,
	}
}

// ListProcs handles GET /procs
func (h *ProcHandler) ListProcs(c *gin.Context) {
	statuses := h.sup.List()

	response := dto.ProcListResponse{
		Items: make([]dto.ProcResponse, len(statuses)),
	}
	for i, status := range statuses {
		response.Items[i] = toProcResponse(status)
	}

	c.JSON(http.StatusOK, response)
}

// CreateProc handles POST /procs
func (h *ProcHandler) CreateProc(c *gin.Context) {
	var req dto.CreateProcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	start := c.DefaultQuery("start", "true") == "true"

	spec := domain.ProcessSpec{
		ID:      req.ID,
		Command: req.Command,
		Dir:     req.Dir,
		Env:     req.Env,
	}

	if err := h.sup.Create(spec, start); err != nil {
		writeSupervisorError(c, err)
		return
	}

	status, err := h.sup.Get(req.ID)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProcResponse(status))
}

// GetProc handles GET /procs/:name
func (h *ProcHandler) GetProc(c *gin.Context) {
	status, err := h.sup.Get(c.Param("name"))
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProcResponse(status))
}

// StartProc handles POST /procs/:name/start
func (h *ProcHandler) StartProc(c *gin.Context) {
	name := c.Param("name")

	if err := h.sup.Start(name); err != nil {
		writeSupervisorError(c, err)
		return
	}

	status, err := h.sup.Get(name)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProcResponse(status))
}

// StopProc handles POST /procs/:name/stop
func (h *ProcHandler) StopProc(c *gin.Context) {
	name := c.Param("name")

	grace, ok := h.graceFromQuery(c)
	if !ok {
		return
	}

	if err := h.sup.Stop(name, grace); err != nil {
		writeSupervisorError(c, err)
		return
	}

	status, err := h.sup.Get(name)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProcResponse(status))
}

// RestartProc handles POST /procs/:name/restart
func (h *ProcHandler) RestartProc(c *gin.Context) {
	name := c.Param("name")

	grace, ok := h.graceFromQuery(c)
	if !ok {
		return
	}

	if err := h.sup.Restart(name, grace); err != nil {
		writeSupervisorError(c, err)
		return
	}

	status, err := h.sup.Get(name)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProcResponse(status))
}

// WriteInput handles POST /procs/:name/write
func (h *ProcHandler) WriteInput(c *gin.Context) {
	var req dto.WriteInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	line := req.Line
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	if err := h.sup.SendInput(c.Param("name"), []byte(line)); err != nil {
		writeSupervisorError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// ReadOutput handles GET /procs/:name/output
func (h *ProcHandler) ReadOutput(c *gin.Context) {
	stream, ok := streamFromQuery(c, domain.StreamStdout, false)
	if !ok {
		return
	}

	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid since parameter",
			Code:    http.StatusBadRequest,
		})
		return
	}

	chunks, floor, err := h.sup.ReadOutput(c.Param("name"), stream, since)
	if err != nil {
		if errors.Is(err, supervisor.ErrTruncated) {
			c.JSON(http.StatusGone, dto.OutputResponse{Floor: floor})
			return
		}
		writeSupervisorError(c, err)
		return
	}

	response := dto.OutputResponse{
		Chunks: make([]dto.ChunkResponse, len(chunks)),
		Floor:  floor,
	}
	for i, chunk := range chunks {
		response.Chunks[i] = toChunkResponse(chunk)
	}

	c.JSON(http.StatusOK, response)
}

// Tail handles GET /procs/:name/tail
func (h *ProcHandler) Tail(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "100"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid n parameter",
			Code:    http.StatusBadRequest,
		})
		return
	}

	includeStderr := c.DefaultQuery("include_stderr", "true") == "true"

	chunks, err := h.sup.Tail(c.Param("name"), n, includeStderr)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	response := dto.TailResponse{
		Lines: make([]dto.ChunkResponse, len(chunks)),
	}
	for i, chunk := range chunks {
		response.Lines[i] = toChunkResponse(chunk)
	}

	c.JSON(http.StatusOK, response)
}

// TailText handles GET /procs/:name/tail-text. It renders the same lines
// as Tail but as plain text, one line per row, optionally prefixed with
// the capture timestamp.
func (h *ProcHandler) TailText(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "100"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid n parameter",
			Code:    http.StatusBadRequest,
		})
		return
	}

	includeStderr := c.DefaultQuery("include_stderr", "true") == "true"
	prefixTimestamp := c.DefaultQuery("prefix_timestamp", "true") == "true"

	chunks, err := h.sup.Tail(c.Param("name"), n, includeStderr)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		if prefixTimestamp {
			sb.WriteString(chunk.Time.Format(time.RFC3339Nano))
			sb.WriteString(" | ")
		}
		sb.WriteString(chunk.Line)
		sb.WriteByte('\n')
	}

	c.String(http.StatusOK, sb.String())
}

// StreamOutput handles GET /procs/:name/stream as Server-Sent Events.
// Delivery starts from the moment of subscription; history is available
// through the output endpoint only.
func (h *ProcHandler) StreamOutput(c *gin.Context) {
	stream, ok := streamFromQuery(c, "", true)
	if !ok {
		return
	}

	sub, err := h.sup.Subscribe(c.Param("name"), stream)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}
	defer sub.Cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case chunk := <-sub.C():
			c.SSEvent("chunk", toChunkResponse(chunk))
			return true
		case <-sub.Done():
			return false
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// ListEvents handles GET /procs/:name/events
func (h *ProcHandler) ListEvents(c *gin.Context) {
	name := c.Param("name")

	// The process may already be removed; events are still served if any
	// remain, but an id that was never known yields an empty trail too.
	filter := repository.EventFilter{}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := domain.EventKind(kindStr)
		filter.Kind = &kind
	}
	if genStr := c.Query("generation"); genStr != "" {
		gen, err := strconv.Atoi(genStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad Request",
				Message: "Invalid generation parameter",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Generation = &gen
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad Request",
				Message: "Invalid limit parameter",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Limit = limit
	}

	events, err := h.events.ListEvents(c.Request.Context(), name, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal Server Error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	response := dto.EventListResponse{
		Items: make([]dto.EventResponse, len(events)),
	}
	for i, event := range events {
		response.Items[i] = dto.EventResponse{
			ID:         event.ID,
			ProcessID:  event.ProcessID,
			Generation: event.Generation,
			Kind:       string(event.Kind),
			PID:        event.PID,
			ExitCode:   event.ExitCode,
			Detail:     event.Detail,
			CreatedAt:  event.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, response)
}

// DeleteProc handles DELETE /procs/:name
func (h *ProcHandler) DeleteProc(c *gin.Context) {
	name := c.Param("name")

	if err := h.sup.Remove(name); err != nil {
		writeSupervisorError(c, err)
		return
	}

	if h.events != nil {
		// Registration is gone; a stale audit trail is not worth failing
		// the delete over.
		_ = h.events.ForgetProcess(c.Request.Context(), name)
	}

	c.Status(http.StatusNoContent)
}

func (h *ProcHandler) graceFromQuery(c *gin.Context) (time.Duration, bool) {
	graceStr := c.Query("grace_millis")
	if graceStr == "" {
		return h.sup.DefaultGrace(), true
	}

	millis, err := strconv.Atoi(graceStr)
	if err != nil || millis < 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad Request",
			Message: "Invalid grace_millis parameter",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return time.Duration(millis) * time.Millisecond, true
}

func streamFromQuery(c *gin.Context, fallback domain.Stream, allowBoth bool) (domain.Stream, bool) {
	switch c.DefaultQuery("stream", string(fallback)) {
	case string(domain.StreamStdout):
		return domain.StreamStdout, true
	case string(domain.StreamStderr):
		return domain.StreamStderr, true
	case "", "both":
		if allowBoth {
			return "", true
		}
	}

	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Bad Request",
		Message: "Invalid stream parameter",
		Code:    http.StatusBadRequest,
	})
	return "", false
}

func writeSupervisorError(c *gin.Context, err error) {
	var status int
	var title string

	var killErr *supervisor.KillError
	switch {
	case errors.Is(err, supervisor.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, supervisor.ErrAlreadyExists),
		errors.Is(err, supervisor.ErrAlreadyRunning),
		errors.Is(err, supervisor.ErrStillRunning),
		errors.Is(err, supervisor.ErrInvalidID):
		status, title = http.StatusBadRequest, "Bad Request"
	case errors.Is(err, supervisor.ErrNotRunning):
		status, title = http.StatusConflict, "Conflict"
	case errors.Is(err, supervisor.ErrTruncated):
		status, title = http.StatusGone, "Gone"
	case errors.As(err, &killErr):
		status, title = http.StatusInternalServerError, "Internal Server Error"
	default:
		status, title = http.StatusInternalServerError, "Internal Server Error"
	}

	c.JSON(status, dto.ErrorResponse{
		Error:   title,
		Message: err.Error(),
		Code:    status,
	})
}

func toProcResponse(status domain.ProcessStatus) dto.ProcResponse {
	return dto.ProcResponse{
		ID:         status.ID,
		Command:    status.Command,
		State:      string(status.State),
		PID:        status.PID,
		ExitCode:   status.ExitCode,
		Reason:     status.Reason,
		Generation: status.Generation,
		StartedAt:  status.StartedAt,
		EndedAt:    status.EndedAt,
	}
}

func toChunkResponse(chunk domain.Chunk) dto.ChunkResponse {
	return dto.ChunkResponse{
		Stream: string(chunk.Stream),
		Seq:    chunk.Seq,
		Line:   chunk.Line,
		Time:   chunk.Time,
	}
}
