package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
	"github.com/xuri/excelize/v2"
)

// Export formats
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

// LinkFlow handles creating, listing, inspecting, deleting and exporting a user's links
type LinkFlow interface {
	CreateLink(ctx context.Context, userID uint, req *dto.CreateLinkRequest, baseURL string, metadata *ClientMetadata) (*dto.LinkDTO, error)
	ListLinks(ctx context.Context, userID uint, baseURL string) (*dto.ListLinksResponse, error)
	GetLink(ctx context.Context, userID, linkID uint, baseURL string) (*dto.LinkDTO, error)
	DeleteLink(ctx context.Context, userID, linkID uint, metadata *ClientMetadata) (*dto.DeleteLinkResponse, error)
	ExportLinks(ctx context.Context, userID uint, format, baseURL string, metadata *ClientMetadata) (*dto.ExportFile, error)
}

// LinkSettings bounds link creation
type LinkSettings struct {
	MaxLinksPerUser   int
	MaxURLLength      int
	ShortCodeLength   int
	ShortCodeAttempts int
}

func (s LinkSettings) withDefaults() LinkSettings {
	if s.MaxURLLength <= 0 {
		s.MaxURLLength = utils.DefaultMaxURLLength
	}
	if s.ShortCodeLength <= 0 {
		s.ShortCodeLength = utils.DefaultShortCodeLength
	}
	if s.ShortCodeAttempts <= 0 {
		s.ShortCodeAttempts = utils.DefaultShortCodeAttempts
	}
	return s
}

// LinkFlowImpl implements the link business flow
type LinkFlowImpl struct {
	tx       repository.Transactor
	linkRepo repository.LinkRepository
	audit    auditor
	cache    services.LinkCache
	notifier services.ChangeNotifier
	settings LinkSettings
	generate func(length int) (string, error)
}

// NewLinkFlow creates a new link flow instance
func NewLinkFlow(
	tx repository.Transactor,
	linkRepo repository.LinkRepository,
	auditRepo repository.AuditLogRepository,
	cache services.LinkCache,
	notifier services.ChangeNotifier,
	settings LinkSettings,
) LinkFlow {
	return &LinkFlowImpl{
		tx:       tx,
		linkRepo: linkRepo,
		audit:    auditor{repo: auditRepo},
		cache:    cache,
		notifier: notifier,
		settings: settings.withDefaults(),
		generate: GenerateShortCode,
	}
}

// CreateLink stores a new active link. The unique constraint on short_code decides races:
// a custom slug that loses surfaces as Conflict, a generated code is redrawn.
func (lf *LinkFlowImpl) CreateLink(ctx context.Context, userID uint, req *dto.CreateLinkRequest, baseURL string, metadata *ClientMetadata) (*dto.LinkDTO, error) {
	originalURL, customSlug, err := lf.validateCreateRequest(req)
	if err != nil {
		return nil, NewBusinessError(CodeValidationError, err.Error(), err)
	}

	if lf.settings.MaxLinksPerUser > 0 {
		count, err := lf.linkRepo.CountActiveByUser(ctx, userID)
		if err != nil {
			return nil, NewBusinessError("LINK_COUNT_FAILED", "Failed to count links", err)
		}
		if count >= int64(lf.settings.MaxLinksPerUser) {
			return nil, NewBusinessErrorf(CodeLinkLimitReached, "You can have at most %d active links", ErrLinkLimitReached, lf.settings.MaxLinksPerUser)
		}
	}

	source := "generated"
	if customSlug != "" {
		source = "custom"
	}

	link, err := lf.insertWithUniqueCode(ctx, userID, originalURL, customSlug)
	if err != nil {
		errMsg := err.Error()
		lf.audit.record(ctx, &userID, models.AuditActionLinkCreated, "Link creation failed", false, &errMsg, metadata)

		switch {
		case errors.Is(err, ErrShortCodeTaken):
			return nil, NewBusinessError(CodeShortCodeTaken, "This short code is already taken, please choose another", err)
		case errors.Is(err, ErrShortCodeExhausted):
			return nil, NewBusinessError(CodeShortCodeTaken, "Could not allocate a short code, please retry", err)
		default:
			return nil, NewBusinessError("LINK_CREATE_FAILED", "Failed to create link", err)
		}
	}

	linksCreatedTotal.WithLabelValues(source).Inc()

	if lf.cache != nil {
		if err := lf.cache.Forget(ctx, link.ShortCode); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("short_code", link.ShortCode).Msg("Failed to clear missing-link marker")
		}
	}

	lf.audit.record(ctx, &userID, models.AuditActionLinkCreated, fmt.Sprintf("Link %d created with code %s", link.ID, link.ShortCode), true, nil, metadata)
	lf.publish(ctx, userID, services.ChangeOpInsert, link.ID)

	logging.Ctx(ctx).Info().
		Uint("user_id", userID).
		Uint("link_id", link.ID).
		Str("short_code", link.ShortCode).
		Str("code_source", source).
		Msg("Link created")

	out := ToLinkDTO(*link, baseURL)
	return &out, nil
}

func (lf *LinkFlowImpl) validateCreateRequest(req *dto.CreateLinkRequest) (string, string, error) {
	if req == nil {
		return "", "", ErrInvalidOriginalURL
	}

	originalURL, err := ValidateOriginalURL(req.OriginalURL, lf.settings.MaxURLLength)
	if err != nil {
		return "", "", err
	}

	customSlug := ""
	if req.CustomSlug != nil {
		customSlug = strings.TrimSpace(*req.CustomSlug)
	}
	if customSlug != "" {
		if err := ValidateCustomSlug(customSlug); err != nil {
			return "", "", err
		}
	}

	return originalURL, customSlug, nil
}

func (lf *LinkFlowImpl) insertWithUniqueCode(ctx context.Context, userID uint, originalURL, customSlug string) (*models.Link, error) {
	attempts := lf.settings.ShortCodeAttempts
	if customSlug != "" {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		code := customSlug
		if code == "" {
			generated, err := lf.generate(lf.settings.ShortCodeLength)
			if err != nil {
				return nil, err
			}
			code = generated
		}

		link := &models.Link{
			UserID:      userID,
			OriginalURL: originalURL,
			ShortCode:   code,
			Clicks:      0,
			IsActive:    utils.ToPtr(true),
		}

		err := lf.linkRepo.Save(ctx, link)
		if err == nil {
			return link, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}

		if customSlug != "" {
			shortCodeCollisionsTotal.WithLabelValues("custom").Inc()
			return nil, ErrShortCodeTaken
		}

		shortCodeCollisionsTotal.WithLabelValues("generated").Inc()
		logging.Ctx(ctx).Debug().Str("short_code", code).Int("attempt", attempt).Msg("Generated short code collided, retrying")
	}

	return nil, ErrShortCodeExhausted
}

// ListLinks returns the user's active links, newest first
func (lf *LinkFlowImpl) ListLinks(ctx context.Context, userID uint, baseURL string) (*dto.ListLinksResponse, error) {
	links, err := lf.linkRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("LINK_LIST_FAILED", "Failed to list links", err)
	}

	out := make([]dto.LinkDTO, 0, len(links))
	for _, l := range links {
		out = append(out, ToLinkDTO(*l, baseURL))
	}

	return &dto.ListLinksResponse{Links: out, Total: len(out)}, nil
}

// GetLink returns one active link owned by the user
func (lf *LinkFlowImpl) GetLink(ctx context.Context, userID, linkID uint, baseURL string) (*dto.LinkDTO, error) {
	link, err := lf.linkRepo.ByID(ctx, linkID)
	if err != nil {
		return nil, NewBusinessError("LINK_LOOKUP_FAILED", "Failed to load link", err)
	}
	if link == nil || link.UserID != userID || !link.Active() {
		return nil, NewBusinessError(CodeLinkNotFound, "Link not found", ErrLinkNotFound)
	}

	out := ToLinkDTO(*link, baseURL)
	return &out, nil
}

// DeleteLink soft deletes a link. The ownership check is part of the update filter, so a
// foreign or unknown id changes nothing and still reports success.
func (lf *LinkFlowImpl) DeleteLink(ctx context.Context, userID, linkID uint, metadata *ClientMetadata) (*dto.DeleteLinkResponse, error) {
	var shortCode string

	affected, err := inTransaction(ctx, lf.tx, func(ctx context.Context) (int64, error) {
		link, err := lf.linkRepo.ByID(ctx, linkID)
		if err != nil {
			return 0, err
		}
		if link != nil && link.UserID == userID {
			shortCode = link.ShortCode
		}
		return lf.linkRepo.Deactivate(ctx, linkID, userID)
	})
	if err != nil {
		return nil, NewBusinessError("LINK_DELETE_FAILED", "Failed to delete link", err)
	}

	if affected == 0 {
		linksDeletedTotal.WithLabelValues("noop").Inc()
		logging.Ctx(ctx).Warn().
			Uint("user_id", userID).
			Uint("link_id", linkID).
			Msg("Delete matched no active link owned by caller")
		lf.audit.record(ctx, &userID, models.AuditActionLinkDeleteNoop, fmt.Sprintf("Delete of link %d matched no owned active link", linkID), true, nil, metadata)
		return &dto.DeleteLinkResponse{ID: linkID, Deleted: true}, nil
	}

	linksDeletedTotal.WithLabelValues("deleted").Inc()

	if lf.cache != nil && shortCode != "" {
		if err := lf.cache.MarkMissing(ctx, shortCode); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("short_code", shortCode).Msg("Failed to mark deleted link as missing")
		}
	}

	lf.audit.record(ctx, &userID, models.AuditActionLinkDeleted, fmt.Sprintf("Link %d deleted", linkID), true, nil, metadata)
	lf.publish(ctx, userID, services.ChangeOpUpdate, linkID)

	return &dto.DeleteLinkResponse{ID: linkID, Deleted: true}, nil
}

// ExportLinks renders the user's active links as CSV or XLSX
func (lf *LinkFlowImpl) ExportLinks(ctx context.Context, userID uint, format, baseURL string, metadata *ClientMetadata) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return nil, NewBusinessError(CodeValidationError, "format must be csv or xlsx", ErrUnsupportedExportFmt)
	}

	links, err := lf.linkRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("LINK_LIST_FAILED", "Failed to list links", err)
	}

	rows := exportRows(links, baseURL)
	stamp := utils.UTCNow().Format("20060102_150405")

	var file *dto.ExportFile
	switch format {
	case ExportFormatXLSX:
		content, err := renderXLSX(rows)
		if err != nil {
			return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
		}
		file = &dto.ExportFile{
			Filename:    fmt.Sprintf("links_%s.xlsx", stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Content:     content,
		}
	default:
		content, err := renderCSV(rows)
		if err != nil {
			return nil, NewBusinessError("CSV_WRITE_ERROR", "Failed to write CSV file", err)
		}
		file = &dto.ExportFile{
			Filename:    fmt.Sprintf("links_%s.csv", stamp),
			ContentType: "text/csv; charset=utf-8",
			Content:     content,
		}
	}

	lf.audit.record(ctx, &userID, models.AuditActionLinksExported, fmt.Sprintf("Exported %d links as %s", len(links), format), true, nil, metadata)
	return file, nil
}

var exportHeader = []string{"id", "short_code", "short_url", "original_url", "clicks", "created_at", "last_clicked_at"}

func exportRows(links []*models.Link, baseURL string) [][]string {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		lastClicked := ""
		if l.LastClickedAt != nil {
			lastClicked = l.LastClickedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.ShortCode,
			ShortURL(baseURL, l.ShortCode),
			l.OriginalURL,
			strconv.FormatInt(l.Clicks, 10),
			l.CreatedAt.UTC().Format(time.RFC3339),
			lastClicked,
		})
	}
	return rows
}

func renderCSV(rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Links"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	header := exportHeader
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		record := row
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lf *LinkFlowImpl) publish(ctx context.Context, userID uint, op string, linkID uint) {
	if lf.notifier == nil {
		return
	}
	event := services.ChangeEvent{
		UserID: userID,
		Table:  services.ChangeTableLinks,
		Op:     op,
		LinkID: linkID,
		At:     utils.UTCNow(),
	}
	if err := lf.notifier.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Uint("user_id", userID).Msg("Failed to publish link change")
	}
}
