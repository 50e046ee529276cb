package http

import (
	"github.com/swaggo/swag"
)

// SwaggerInfo holds the REST API document served under /swagger/. Its
// template follows the handler annotations in server.go and has to be kept
// in step with them.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "grouppilot status API",
	Description:      "Read-only view of grouppilot sessions and their audit journal. Calls under /api need the bearer token when server.auth_token is set.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Liveness and session counts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}}
                }
            }
        },
        "/api/sessions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionList"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Error"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/sessions/{user_id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get one session",
                "parameters": [
                    {"type": "string", "description": "Chat user id", "name": "user_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Snapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/sessions/{user_id}/journal": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["journal"],
                "summary": "Recent approvals and renames",
                "parameters": [
                    {"type": "string", "description": "Chat user id", "name": "user_id", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries (default 50, at most 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/JournalList"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Journal disabled", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/rpc/discover": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["control"],
                "summary": "OpenRPC document of the control API",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "version": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "sessions": {"type": "integer"},
                "connected": {"type": "integer"}
            }
        },
        "Snapshot": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"},
                "state": {"type": "string", "enum": ["disconnected", "connecting", "pairing_pending", "open", "closed_retrying", "closed_permanent"]},
                "connected": {"type": "boolean"},
                "last_connected_at": {"type": "string", "format": "date-time"},
                "reconnect_attempts": {"type": "integer"},
                "auto_approve_enabled": {"type": "boolean"},
                "auto_approve_installed": {"type": "boolean"},
                "source": {"type": "string", "enum": ["fresh", "restored"]},
                "phone": {"type": "string"}
            }
        },
        "SessionList": {
            "type": "object",
            "properties": {"sessions": {"type": "array", "items": {"$ref": "#/definitions/Snapshot"}}}
        },
        "JournalEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "user_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["approval", "rename"]},
                "group_id": {"type": "string"},
                "participant_id": {"type": "string"},
                "source": {"type": "string"},
                "batch_id": {"type": "string"},
                "old_name": {"type": "string"},
                "new_name": {"type": "string"},
                "sequence": {"type": "integer"},
                "error": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "JournalList": {
            "type": "object",
            "properties": {"entries": {"type": "array", "items": {"$ref": "#/definitions/JournalEntry"}}}
        }
    }
}`
