package handlers

import (
	"html/template"
	"strings"
	"time"

	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/gofiber/fiber/v3"
)

// RedirectHandlerInterface defines the contract for public short link visits
type RedirectHandlerInterface interface {
	Visit(c fiber.Ctx) error
}

type RedirectHandler struct {
	baseHandler
	resolver businessflow.RedirectResolver
	appName  string
}

func NewRedirectHandler(resolver businessflow.RedirectResolver, appName string, requestTimeout time.Duration) *RedirectHandler {
	return &RedirectHandler{
		baseHandler: newBaseHandler("", requestTimeout),
		resolver:    resolver,
		appName:     appName,
	}
}

var notFoundPage = template.Must(template.New("not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Link Not Found | {{.AppName}}</title>
</head>
<body>
<main>
<h1>Link Not Found</h1>
<p>The short link <code>/{{.ShortCode}}</code> does not exist or has been deleted.</p>
<p><a href="/">Go to homepage</a></p>
</main>
</body>
</html>
`))

// Visit resolves a short code and redirects to its target
// @Summary Visit Short Link
// @Tags Redirect
// @Produce html
// @Param code path string true "Short code"
// @Success 302 {string} string "Redirect to the original URL"
// @Failure 404 {string} string "Link Not Found page"
// @Router /{code} [get]
func (h *RedirectHandler) Visit(c fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))

	ctx, cancel := h.createRequestContext(c, "/:code")
	defer cancel()

	result := h.resolver.Resolve(ctx, code, clientMetadata(c))

	// every visit must reach the server to be counted
	c.Set(fiber.HeaderCacheControl, "no-store")

	if result.State == businessflow.RedirectRedirecting {
		return c.Redirect().Status(fiber.StatusFound).To(result.Location)
	}

	c.Status(fiber.StatusNotFound)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return notFoundPage.Execute(c, struct {
		AppName   string
		ShortCode string
	}{AppName: h.appName, ShortCode: code})
}
