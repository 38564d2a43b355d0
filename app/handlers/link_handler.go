package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/gofiber/fiber/v3"
)

// LinkHandlerInterface defines the contract for the authenticated link endpoints
type LinkHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

type LinkHandler struct {
	baseHandler
	flow businessflow.LinkFlow
}

// NewLinkHandler creates the link handler. baseURL overrides the request origin in short URLs.
func NewLinkHandler(flow businessflow.LinkFlow, baseURL string, requestTimeout time.Duration) *LinkHandler {
	return &LinkHandler{
		baseHandler: newBaseHandler(baseURL, requestTimeout),
		flow:        flow,
	}
}

// Create shortens a URL
// @Summary Create Short Link
// @Description Shorten a URL with a generated code or a custom slug
// @Tags Links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateLinkRequest true "Link to shorten"
// @Success 201 {object} dto.APIResponse{data=dto.LinkDTO} "Link created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 409 {object} dto.APIResponse "Short code taken"
// @Failure 422 {object} dto.APIResponse "Link limit reached"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/links [post]
func (h *LinkHandler) Create(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	var req dto.CreateLinkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/links")
	defer cancel()

	link, err := h.flow.CreateLink(ctx, userID, &req, h.shortLinkOrigin(c), clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to create link", "CREATE_LINK_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Link created successfully", link)
}

// List returns the caller's active links, newest first
// @Summary List Links
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListLinksResponse} "Links"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/links [get]
func (h *LinkHandler) List(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/links")
	defer cancel()

	result, err := h.flow.ListLinks(ctx, userID, h.shortLinkOrigin(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to list links", "LIST_LINKS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Links retrieved successfully", result)
}

// Get returns one of the caller's active links
// @Summary Get Link
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Param id path int true "Link ID"
// @Success 200 {object} dto.APIResponse{data=dto.LinkDTO} "Link"
// @Failure 400 {object} dto.APIResponse "Invalid link id"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/links/{id} [get]
func (h *LinkHandler) Get(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}
	linkID, ok := parseLinkID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid link id", "INVALID_LINK_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/links/:id")
	defer cancel()

	link, err := h.flow.GetLink(ctx, userID, linkID, h.shortLinkOrigin(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to load link", "GET_LINK_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Link retrieved successfully", link)
}

// Delete soft deletes one of the caller's links. Deleting a missing or foreign link succeeds without effect.
// @Summary Delete Link
// @Tags Links
// @Produce json
// @Security BearerAuth
// @Param id path int true "Link ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteLinkResponse} "Link deleted"
// @Failure 400 {object} dto.APIResponse "Invalid link id"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/links/{id} [delete]
func (h *LinkHandler) Delete(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}
	linkID, ok := parseLinkID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid link id", "INVALID_LINK_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/links/:id")
	defer cancel()

	result, err := h.flow.DeleteLink(ctx, userID, linkID, clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to delete link", "DELETE_LINK_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Link deleted successfully", result)
}

// Export downloads the caller's active links
// @Summary Export Links
// @Tags Links
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv (default) or xlsx"
// @Success 200 {string} string "Export file"
// @Failure 400 {object} dto.APIResponse "Unsupported format"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/links/export [get]
func (h *LinkHandler) Export(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	var req dto.ExportLinksRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	if req.Format == "" {
		req.Format = businessflow.ExportFormatCSV
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/links/export", 3*h.requestTimeout)
	defer cancel()

	file, err := h.flow.ExportLinks(ctx, userID, req.Format, h.shortLinkOrigin(c), clientMetadata(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to export links", "EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+file.Filename+`"`)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(file.Content)
}

func parseLinkID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
