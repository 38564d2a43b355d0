package handlers

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLinkApp(flow *fakeLinkFlow, baseURL string) *fiber.App {
	h := NewLinkHandler(flow, baseURL, time.Second)
	app := fiber.New()
	links := app.Group("/api/v1/links", withUser(3))
	links.Post("/", h.Create)
	links.Get("/", h.List)
	links.Get("/export", h.Export)
	links.Get("/:id", h.Get)
	links.Delete("/:id", h.Delete)

	// no auth middleware in front
	app.Get("/anonymous/links", h.List)
	return app
}

func TestLinkHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		flowErr    error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "Success",
			body:       `{"original_url":"https://example.com/page","custom_slug":"promo"}`,
			wantStatus: fiber.StatusCreated,
		},
		{
			name:       "MissingURL",
			body:       `{"custom_slug":"promo"}`,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   businessflow.CodeValidationError,
			wantField:  "original_url",
		},
		{
			name:       "SlugTaken",
			body:       `{"original_url":"https://example.com/page","custom_slug":"promo"}`,
			flowErr:    businessflow.NewBusinessError(businessflow.CodeShortCodeTaken, "Short code is already taken", businessflow.ErrShortCodeTaken),
			wantStatus: fiber.StatusConflict,
			wantCode:   businessflow.CodeShortCodeTaken,
			wantField:  "custom_slug",
		},
		{
			name:       "InvalidURL",
			body:       `{"original_url":"ftp://example.com"}`,
			flowErr:    businessflow.NewBusinessError(businessflow.CodeValidationError, businessflow.ErrInvalidOriginalURL.Error(), businessflow.ErrInvalidOriginalURL),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   businessflow.CodeValidationError,
			wantField:  "original_url",
		},
		{
			name:       "LimitReached",
			body:       `{"original_url":"https://example.com/page"}`,
			flowErr:    businessflow.NewBusinessError(businessflow.CodeLinkLimitReached, "Maximum number of active links reached", businessflow.ErrLinkLimitReached),
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   businessflow.CodeLinkLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeLinkFlow{create: func(userID uint, req *dto.CreateLinkRequest, baseURL string) (*dto.LinkDTO, error) {
				if tt.flowErr != nil {
					return nil, tt.flowErr
				}
				assert.Equal(t, uint(3), userID)
				return &dto.LinkDTO{ID: 1, ShortCode: *req.CustomSlug, ShortURL: baseURL + "/" + *req.CustomSlug, OriginalURL: req.OriginalURL, IsActive: true}, nil
			}}
			app := setupLinkApp(flow, "")

			resp := doRequest(t, app, fiber.MethodPost, "/api/v1/links", tt.body, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			env := decodeEnvelope(t, resp)
			if tt.wantCode == "" {
				var link dto.LinkDTO
				require.NoError(t, json.Unmarshal(env.Data, &link))
				assert.Equal(t, "promo", link.ShortCode)
				assert.Equal(t, "http://example.com/promo", link.ShortURL)
				return
			}
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.wantField != "" {
				var fields []dto.FieldError
				require.NoError(t, json.Unmarshal(env.Error.Details, &fields))
				require.NotEmpty(t, fields)
				assert.Equal(t, tt.wantField, fields[0].Field)
			}
		})
	}
}

func TestLinkHandler_ConfiguredBaseURL(t *testing.T) {
	flow := &fakeLinkFlow{list: func(userID uint, baseURL string) (*dto.ListLinksResponse, error) {
		return &dto.ListLinksResponse{Links: []dto.LinkDTO{}}, nil
	}}
	app := setupLinkApp(flow, "https://sho.rt/")

	resp := doRequest(t, app, fiber.MethodGet, "/api/v1/links", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://sho.rt", flow.lastURL)
}

func TestLinkHandler_RequiresUser(t *testing.T) {
	app := setupLinkApp(&fakeLinkFlow{}, "")

	resp := doRequest(t, app, fiber.MethodGet, "/anonymous/links", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, businessflow.CodeTokenInvalid, decodeEnvelope(t, resp).Error.Code)
}

func TestLinkHandler_Get(t *testing.T) {
	flow := &fakeLinkFlow{get: func(userID, linkID uint) (*dto.LinkDTO, error) {
		if linkID == 99 {
			return nil, businessflow.NewBusinessError(businessflow.CodeLinkNotFound, "Link not found", businessflow.ErrLinkNotFound)
		}
		return &dto.LinkDTO{ID: linkID, ShortCode: "abc123"}, nil
	}}
	app := setupLinkApp(flow, "")

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"Found", "/api/v1/links/5", fiber.StatusOK, ""},
		{"NotFound", "/api/v1/links/99", fiber.StatusNotFound, businessflow.CodeLinkNotFound},
		{"NonNumericID", "/api/v1/links/abc", fiber.StatusBadRequest, "INVALID_LINK_ID"},
		{"ZeroID", "/api/v1/links/0", fiber.StatusBadRequest, "INVALID_LINK_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, fiber.MethodGet, tt.target, "", nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, resp).Error.Code)
		})
	}
}

func TestLinkHandler_Delete(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var gotUser, gotLink uint
		flow := &fakeLinkFlow{delete: func(userID, linkID uint) (*dto.DeleteLinkResponse, error) {
			gotUser, gotLink = userID, linkID
			return &dto.DeleteLinkResponse{ID: linkID, Deleted: true}, nil
		}}
		app := setupLinkApp(flow, "")

		resp := doRequest(t, app, fiber.MethodDelete, "/api/v1/links/12", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, uint(3), gotUser)
		assert.Equal(t, uint(12), gotLink)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		flow := &fakeLinkFlow{delete: func(userID, linkID uint) (*dto.DeleteLinkResponse, error) {
			return nil, errors.New("connection reset")
		}}
		app := setupLinkApp(flow, "")

		resp := doRequest(t, app, fiber.MethodDelete, "/api/v1/links/12", "", nil)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "DELETE_LINK_FAILED", decodeEnvelope(t, resp).Error.Code)
	})
}

func TestLinkHandler_Export(t *testing.T) {
	var gotFormat string
	flow := &fakeLinkFlow{export: func(userID uint, format string) (*dto.ExportFile, error) {
		gotFormat = format
		return &dto.ExportFile{
			Filename:    "links." + format,
			ContentType: "text/csv; charset=utf-8",
			Content:     []byte("short_code,original_url\nabc123,https://example.com\n"),
		}, nil
	}}
	app := setupLinkApp(flow, "")

	t.Run("DefaultsToCSV", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodGet, "/api/v1/links/export", "", nil)
		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "csv", gotFormat)
		assert.Equal(t, `attachment; filename="links.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))
		assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "abc123,https://example.com")
	})

	t.Run("RejectsUnknownFormat", func(t *testing.T) {
		resp := doRequest(t, app, fiber.MethodGet, "/api/v1/links/export?format=pdf", "", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, businessflow.CodeValidationError, decodeEnvelope(t, resp).Error.Code)
	})
}
