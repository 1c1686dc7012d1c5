// Package docs registers the OpenAPI description served at /swagger.
//
// The handler annotations in internal/http/handlers are the source; this file
// carries the rendered template.
package docs

import "github.com/swaggo/swag"

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
    "paths": {
        "/": {"get": {"tags": ["Reports"], "summary": "List reports (paginated)", "operationId": "listReports",
            "parameters": [{"type": "integer", "default": 1, "minimum": 1, "name": "page", "in": "query"}],
            "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}}},
        "/report": {"get": {"tags": ["Reports"], "summary": "Report form context", "operationId": "reportForm",
            "responses": {"200": {"description": "OK"}, "303": {"description": "Redirect to /"}}}},
        "/report_bribe": {"post": {"tags": ["Reports"], "summary": "File a bribe report", "operationId": "reportBribe",
            "consumes": ["multipart/form-data"],
            "parameters": [
                {"type": "string", "name": "Idempotency-Key", "in": "header"},
                {"type": "string", "name": "official", "in": "formData"},
                {"type": "string", "name": "department", "in": "formData", "required": true},
                {"type": "integer", "name": "amount", "in": "formData", "required": true},
                {"type": "string", "name": "pincode", "in": "formData"},
                {"type": "string", "name": "state", "in": "formData", "required": true},
                {"type": "string", "name": "district", "in": "formData", "required": true},
                {"type": "string", "name": "description", "in": "formData", "required": true},
                {"type": "string", "name": "date", "in": "formData"},
                {"type": "file", "name": "evidence_files", "in": "formData"}
            ],
            "responses": {"201": {"description": "Created"}, "200": {"description": "Idempotent replay"},
                "400": {"description": "Missing or invalid field"}, "401": {"description": "Sign in required"},
                "413": {"description": "Upload too large"}, "422": {"description": "Invalid date"}, "500": {"description": "Upload failed"}}}},
        "/track_bribe": {"post": {"tags": ["Tracking"], "summary": "Track reports", "operationId": "trackBribe",
            "parameters": [
                {"type": "string", "name": "username", "in": "formData"},
                {"type": "string", "name": "reportingId", "in": "formData"}
            ],
            "responses": {"200": {"description": "OK"}, "303": {"description": "Redirect to /track_report"}, "404": {"description": "No reports found"}}}},
        "/track_report": {"get": {"tags": ["Tracking"], "summary": "One-time tracking results", "operationId": "trackReport",
            "parameters": [{"type": "string", "name": "token", "in": "query"}],
            "responses": {"200": {"description": "OK"}}}},
        "/check_username": {"post": {"tags": ["Accounts"], "summary": "Check username availability", "operationId": "checkUsername",
            "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid username"}, "500": {"description": "Provider error"}}}},
        "/signup": {"post": {"tags": ["Accounts"], "summary": "Register", "operationId": "signUp",
            "responses": {"201": {"description": "Created"}, "400": {"description": "Missing or invalid field"}, "409": {"description": "Username taken"}}}},
        "/signin": {"post": {"tags": ["Accounts"], "summary": "Sign in", "operationId": "signIn",
            "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}},
        "/signout": {"post": {"tags": ["Accounts"], "summary": "Sign out", "operationId": "signOut",
            "responses": {"303": {"description": "Redirect to /"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Bribe Reporting API",
	Description:      "Anonymous bribe reports, tracking codes and evidence uploads.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
