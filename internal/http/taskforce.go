package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sk3-portal/internal/http/middleware"
	"sk3-portal/internal/model"
	"sk3-portal/internal/service"
	"sk3-portal/internal/views"
)

func (h *Handler) taskforceView(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	view, err := views.ParseViewID(c.Param("view"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	}
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	snapshot, err := h.taskforce.List(c.Request.Context(), actor, view, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(snapshot))
}

// resolve accepts the resolve dialog as multipart form data. complaint_id names
// the complaint the photo was picked for and must match the path.
func (h *Handler) resolve(kind model.ComplaintKind) gin.HandlerFunc {
	return func(c *gin.Context) { h.resolveComplaint(c, kind) }
}

func (h *Handler) resolveComplaint(c *gin.Context, kind model.ComplaintKind) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+(1<<20))
	in := service.ResolveInput{Resolution: c.PostForm("resolution")}

	image, err := readTicketImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse("ticket image is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if image != nil {
		image.ComplaintID = id
		if raw := strings.TrimSpace(c.PostForm("complaint_id")); raw != "" {
			picked, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, errorResponse("invalid complaint_id"))
				return
			}
			image.ComplaintID = picked
		}
	}
	in.Image = image

	result, err := h.taskforce.Resolve(c.Request.Context(), actor, kind, id, in)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func readTicketImage(c *gin.Context) (*service.TicketImage, error) {
	header, err := c.FormFile("ticket_image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	if header.Size > maxImageBytes {
		return nil, &http.MaxBytesError{Limit: maxImageBytes}
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, &http.MaxBytesError{Limit: maxImageBytes}
	}
	return &service.TicketImage{Filename: header.Filename, Data: data}, nil
}

type dismissRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) dismiss(kind model.ComplaintKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.MustActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
			return
		}
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req dismissRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		dismissed, err := h.taskforce.Dismiss(c.Request.Context(), actor, kind, id, req.Reason)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(dismissed))
	}
}
