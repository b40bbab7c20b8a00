package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Vigilance Petition Tracker API",
        "description": "Petition intake, workflow transitions, dashboards and register exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Login and token rotation"},
        {"name": "Petitions", "description": "Intake, reads and workflow actions"},
        {"name": "Files", "description": "PDF attachments referenced by actions"},
        {"name": "Dashboard", "description": "Counts, drilldowns and pending work"},
        {"name": "Field Rules", "description": "Requiredness of action payload fields"},
        {"name": "Users", "description": "User listing and inspector mapping"},
        {"name": "Reports", "description": "Asynchronous register exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke a refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/petitions": {
            "get": {
                "tags": ["Petitions"],
                "summary": "List visible petitions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "mode", "in": "query", "type": "string", "enum": ["direct", "permission"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Petitions"],
                "summary": "Register a petition",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePetitionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/petitions/{id}": {
            "get": {
                "tags": ["Petitions"],
                "summary": "Get petition head with allowed operations",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {
                    "200": {"description": "OK, ETag carries the version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/petitions/{id}/ledger": {
            "get": {
                "tags": ["Petitions"],
                "summary": "Petition ledger",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/petitions/{id}/sla": {
            "get": {
                "tags": ["Petitions"],
                "summary": "Petition SLA bucket",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/petitions/{id}/report": {
            "get": {
                "tags": ["Petitions"],
                "summary": "Latest enquiry report",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/petitions/{id}/actions/{operation}": {
            "post": {
                "tags": ["Petitions"],
                "summary": "Apply a workflow operation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "operation", "in": "path", "required": true, "type": "string"},
                    {"name": "If-Match", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ActionPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid state or version conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "424": {"description": "No handler available", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files": {
            "post": {
                "tags": ["Files"],
                "summary": "Upload a PDF attachment",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "kind", "in": "formData", "type": "string"}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/files/{token}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download an attachment",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "PDF"}}
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Dashboard counts for the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/dashboard/drilldown": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Petitions behind a dashboard metric",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "metric", "in": "query", "required": true, "type": "string"},
                    {"name": "mode", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/notifications/pending": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Petitions waiting on the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/field-rules": {
            "get": {
                "tags": ["Field Rules"],
                "summary": "List field rules",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/field-rules/{key}": {
            "put": {
                "tags": ["Field Rules"],
                "summary": "Set one field rule",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "key", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/field-rules/bulk": {
            "put": {
                "tags": ["Field Rules"],
                "summary": "Set several field rules",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users/inspectors": {
            "get": {
                "tags": ["Users"],
                "summary": "Inspectors mapped to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users/{id}/supervisor": {
            "put": {
                "tags": ["Users"],
                "summary": "Map an inspector to a CVO or DSP",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a register export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reports/{id}/status": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "CSV or PDF"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "CreatePetitionRequest": {
            "type": "object",
            "properties": {
                "petitioner_name": {"type": "string"},
                "contact": {"type": "string"},
                "place": {"type": "string"},
                "subject": {"type": "string"},
                "petition_type": {"type": "string", "enum": ["bribe", "harassment", "theft_of_materials", "adverse_news", "procedural_lapses", "other"]},
                "source_of_petition": {"type": "string", "enum": ["media", "public_individual", "govt", "sumoto"]},
                "govt_institution_type": {"type": "string"},
                "received_at": {"type": "string", "enum": ["jmd_office", "cvo_apspdcl_tirupathi", "cvo_apepdcl_vizag", "cvo_apcpdcl_vijayawada"]},
                "received_date": {"type": "string", "format": "date"},
                "permission_type": {"type": "string", "enum": ["direct_enquiry", "permission_required"]},
                "target_cvo": {"type": "string", "enum": ["apspdcl", "apepdcl", "apcpdcl", "headquarters"]},
                "enquiry_type": {"type": "string", "enum": ["preliminary", "detailed"]},
                "remarks": {"type": "string"},
                "ereceipt_no": {"type": "string"},
                "ereceipt_file": {"type": "string"}
            },
            "required": ["subject", "petition_type", "source_of_petition", "received_at", "received_date"]
        },
        "ActionPayload": {
            "type": "object",
            "properties": {
                "comments": {"type": "string"},
                "reason": {"type": "string"},
                "enquiry_type": {"type": "string"},
                "target_cvo": {"type": "string"},
                "inspector_id": {"type": "string"},
                "efile_no": {"type": "string"},
                "file_ref": {"type": "string"},
                "report_text": {"type": "string"},
                "findings": {"type": "string"},
                "recommendation": {"type": "string"},
                "cvo_comments": {"type": "string"},
                "conclusion": {"type": "string"},
                "instructions": {"type": "string"},
                "action_taken": {"type": "string"},
                "remarks": {"type": "string"},
                "mode": {"type": "string"},
                "request_detailed": {"type": "boolean"},
                "ereceipt_no": {"type": "string"}
            }
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["sla_register", "petition_register"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "status": {"type": "string"},
                "mode": {"type": "string", "enum": ["all", "direct", "permission"]}
            },
            "required": ["type", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
