// Package docs registers the swagger spec consumed by swaggo/http-swagger at
// /docs/*. Hand-maintained rather than produced by `swag init` — update this
// file directly when the HTTP surface in internal/handler changes.
package docs

import "github.com/swaggo/swag"

const doc = `{
    "swagger": "2.0",
    "info": {
        "title": "Notify Dispatch API",
        "description": "Multi-channel notification dispatch, retry and delivery status service.",
        "version": "1.0"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/send": {
            "post": {
                "summary": "Submit a notification for delivery",
                "parameters": [
                    {"name": "X-API-Key", "in": "header", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendRequest"}}
                ],
                "responses": {
                    "202": {"description": "accepted"},
                    "400": {"description": "validation error"},
                    "401": {"description": "missing or invalid API key"},
                    "409": {"description": "idempotency key conflict"},
                    "429": {"description": "rate limited"}
                }
            }
        },
        "/status/{id}": {
            "get": {
                "summary": "Fetch current delivery status for a notification",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "status"},
                    "404": {"description": "not found"}
                }
            }
        },
        "/retry/{id}": {
            "post": {
                "summary": "Force an immediate retry of a failed or expired notification",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "requeued"},
                    "404": {"description": "not found"}
                }
            }
        },
        "/health": {
            "get": {
                "summary": "Per-channel adapter health rollup",
                "responses": {
                    "200": {"description": "ok"}
                }
            }
        }
    },
    "definitions": {
        "SendRequest": {
            "type": "object",
            "required": ["channel", "recipient"],
            "properties": {
                "channel": {"type": "string", "enum": ["EMAIL", "TELEGRAM", "SMS", "WHATSAPP"]},
                "recipient": {"type": "string"},
                "subject": {"type": "string"},
                "message": {"type": "string"},
                "template_code": {"type": "string"},
                "template_variables": {"type": "object"},
                "priority": {"type": "string", "enum": ["HIGH", "NORMAL", "LOW"]},
                "idempotency_key": {"type": "string"},
                "callback_url": {"type": "string"}
            }
        }
    }
}`

type reader struct{}

func (reader) ReadDoc() string { return SwaggerInfo.ReadDoc() }

func init() {
	swag.Register(swag.Name, reader{})
}

// SwaggerInfo holds exported swagger info so it can be used by the
// swaggo/http-swagger handler and overridden by main.go at startup if the
// deployment host/basePath differs from the default.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Notify Dispatch API",
	Description:      "Multi-channel notification dispatch, retry and delivery status service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  doc,
}
