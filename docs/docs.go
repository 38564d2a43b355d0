// Package docs registers the OpenAPI document served at /api/v1/swagger.json
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/auth/signup": {
            "post": {
                "tags": ["Authentication"],
                "summary": "User Registration",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.SignupRequest"}},
                    {"in": "query", "name": "from", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Account created", "schema": {"$ref": "#/definitions/dto.AuthResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Email already exists", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "User Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}},
                    {"in": "query", "name": "from", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Login successful", "schema": {"$ref": "#/definitions/dto.AuthResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh Tokens",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/dto.RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens refreshed", "schema": {"$ref": "#/definitions/dto.AuthResponse"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Logout",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Logged out", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Authentication"],
                "summary": "Current User",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Current user", "schema": {"$ref": "#/definitions/dto.CurrentUserResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/auth/captcha": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Signup Captcha",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Challenge issued", "schema": {"$ref": "#/definitions/dto.CaptchaResponse"}},
                    "404": {"description": "Captcha disabled", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/links": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Links"],
                "summary": "List Links",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Links", "schema": {"$ref": "#/definitions/dto.ListLinksResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Links"],
                "summary": "Create Short Link",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.CreateLinkRequest"}}
                ],
                "responses": {
                    "201": {"description": "Link created", "schema": {"$ref": "#/definitions/dto.LinkDTO"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "409": {"description": "Short code taken", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "422": {"description": "Link limit reached", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/api/v1/links/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Links"],
                "summary": "Export Links",
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "Export file", "schema": {"type": "string"}}
                }
            }
        },
        "/api/v1/links/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Links"],
                "summary": "Get Link",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "Link", "schema": {"$ref": "#/definitions/dto.LinkDTO"}},
                    "404": {"description": "Link not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Links"],
                "summary": "Delete Link",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "Link deleted", "schema": {"$ref": "#/definitions/dto.DeleteLinkResponse"}}
                }
            }
        },
        "/api/v1/dashboard": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Dashboard"],
                "summary": "Dashboard Snapshot",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Dashboard", "schema": {"$ref": "#/definitions/dto.DashboardSnapshotDTO"}}
                }
            }
        },
        "/api/v1/dashboard/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Dashboard"],
                "summary": "Dashboard Stats",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Stats", "schema": {"$ref": "#/definitions/dto.DashboardStatsDTO"}}
                }
            }
        },
        "/api/v1/dashboard/analytics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Dashboard"],
                "summary": "Click Analytics",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Seven day series", "schema": {"$ref": "#/definitions/dto.ClickAnalyticsResponse"}}
                }
            }
        },
        "/api/v1/dashboard/stream": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Dashboard"],
                "summary": "Live Dashboard Stream",
                "produces": ["text/event-stream"],
                "responses": {
                    "200": {"description": "snapshot events", "schema": {"$ref": "#/definitions/dto.DashboardStateDTO"}}
                }
            }
        },
        "/api/v1/dashboard/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Dashboard"],
                "summary": "Refresh Dashboard",
                "produces": ["application/json"],
                "responses": {
                    "202": {"description": "Refresh requested", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Health Check",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "503": {"description": "A dependency is down", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/{code}": {
            "get": {
                "tags": ["Redirect"],
                "summary": "Visit Short Link",
                "produces": ["text/html"],
                "parameters": [{"in": "path", "name": "code", "required": true, "type": "string"}],
                "responses": {
                    "302": {"description": "Redirect to the original URL"},
                    "404": {"description": "Link Not Found page"}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"}
            }
        },
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {}
            }
        },
        "dto.SignupRequest": {
            "type": "object",
            "required": ["email", "password", "confirm_password"],
            "properties": {
                "email": {"type": "string", "example": "user@example.com"},
                "password": {"type": "string", "minLength": 8, "maxLength": 100},
                "confirm_password": {"type": "string"},
                "captcha_id": {"type": "string"},
                "captcha_angle": {"type": "number"}
            }
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "example": "user@example.com"},
                "password": {"type": "string"}
            }
        },
        "dto.RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "dto.UserDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "uuid": {"type": "string"},
                "email": {"type": "string"},
                "is_active": {"type": "boolean"},
                "created_at": {"type": "string"},
                "last_login_at": {"type": "string"}
            }
        },
        "dto.SessionDTO": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "refresh_token": {"type": "string"},
                "token_type": {"type": "string", "example": "Bearer"},
                "expires_in": {"type": "integer"},
                "expires_at": {"type": "string"},
                "refresh_expires_at": {"type": "string"}
            }
        },
        "dto.AuthResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/dto.UserDTO"},
                "session": {"$ref": "#/definitions/dto.SessionDTO"},
                "redirect_to": {"type": "string", "example": "/dashboard"}
            }
        },
        "dto.CurrentUserResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/dto.UserDTO"},
                "is_authenticated": {"type": "boolean"}
            }
        },
        "dto.CaptchaResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "master_image": {"type": "string"},
                "thumb_image": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "dto.CreateLinkRequest": {
            "type": "object",
            "required": ["original_url"],
            "properties": {
                "original_url": {"type": "string", "maxLength": 2048, "example": "https://example.com/some/long/page"},
                "custom_slug": {"type": "string", "maxLength": 50, "example": "my-link"}
            }
        },
        "dto.LinkDTO": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "short_code": {"type": "string"},
                "short_url": {"type": "string"},
                "original_url": {"type": "string"},
                "clicks": {"type": "integer"},
                "is_active": {"type": "boolean"},
                "created_at": {"type": "string"},
                "last_clicked_at": {"type": "string"}
            }
        },
        "dto.ListLinksResponse": {
            "type": "object",
            "properties": {
                "links": {"type": "array", "items": {"$ref": "#/definitions/dto.LinkDTO"}},
                "total": {"type": "integer"}
            }
        },
        "dto.DeleteLinkResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "deleted": {"type": "boolean"}
            }
        },
        "dto.DashboardStatsDTO": {
            "type": "object",
            "properties": {
                "total_links": {"type": "integer"},
                "total_clicks": {"type": "integer"},
                "average_clicks": {"type": "integer"}
            }
        },
        "dto.DailyClicksDTO": {
            "type": "object",
            "properties": {
                "day": {"type": "string", "example": "Mon"},
                "date": {"type": "string", "example": "2024-01-15"},
                "click_count": {"type": "integer"}
            }
        },
        "dto.ClickAnalyticsResponse": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "example": "events"},
                "days": {"type": "array", "items": {"$ref": "#/definitions/dto.DailyClicksDTO"}}
            }
        },
        "dto.DashboardSnapshotDTO": {
            "type": "object",
            "properties": {
                "links": {"type": "array", "items": {"$ref": "#/definitions/dto.LinkDTO"}},
                "stats": {"$ref": "#/definitions/dto.DashboardStatsDTO"},
                "analytics": {"$ref": "#/definitions/dto.ClickAnalyticsResponse"},
                "generated_at": {"type": "string"}
            }
        },
        "dto.DashboardStateDTO": {
            "type": "object",
            "properties": {
                "snapshot": {"$ref": "#/definitions/dto.DashboardSnapshotDTO"},
                "loading": {"type": "boolean"},
                "error": {"type": "string"},
                "version": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the access token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ShortLink API",
	Description:      "URL shortener with click analytics and a live dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
