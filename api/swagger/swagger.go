package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Curriculum Tracking API",
        "description": "Workflow engine for university curriculum approval tracking",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh, session management"},
        {"name": "Tracking", "description": "Curriculum tracking records and workflow actions"},
        {"name": "Documents", "description": "Versioned stage documents with signed downloads"},
        {"name": "Exports", "description": "Asynchronous CSV/PDF export jobs"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/initiate": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Initiate curriculum tracking",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "curriculumId", "in": "formData", "required": true, "type": "string"},
                    {"name": "proposedName", "in": "formData", "required": true, "type": "string"},
                    {"name": "proposedCode", "in": "formData", "required": true, "type": "string"},
                    {"name": "durationSemesters", "in": "formData", "required": true, "type": "integer"},
                    {"name": "schoolId", "in": "formData", "required": true, "type": "string"},
                    {"name": "departmentId", "in": "formData", "required": true, "type": "string"},
                    {"name": "academicLevelId", "in": "formData", "required": true, "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "expectedCompletionDate", "in": "formData", "type": "string"},
                    {"name": "documentType", "in": "formData", "type": "string"},
                    {"name": "documents", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/action": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Apply a workflow action",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "trackingId", "in": "formData", "required": true, "type": "string"},
                    {"name": "action", "in": "formData", "required": true, "type": "string", "enum": ["APPROVE", "REJECT", "HOLD", "RESUME", "RETURN"]},
                    {"name": "notes", "in": "formData", "type": "string"},
                    {"name": "feedback", "in": "formData", "type": "string"},
                    {"name": "returnToStage", "in": "formData", "type": "string"},
                    {"name": "documentType", "in": "formData", "type": "string"},
                    {"name": "documents", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict"},
                    "422": {"description": "Workflow rule violation"}
                }
            }
        },
        "/tracking/search": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Search tracking records",
                "parameters": [
                    {"name": "criteria", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackingSearchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/statistics": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Workflow statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{id}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Get tracking record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "tags": ["Tracking"],
                "summary": "Update tracking metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackingUpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{id}/deactivate": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Deactivate tracking record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/tracking/{id}/reactivate": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Reactivate tracking record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/tracking/{id}/assign/{userId}": {
            "post": {
                "tags": ["Tracking"],
                "summary": "Assign tracking record to a user",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/tracking/school/{id}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records by school",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "size", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "includeInactive", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/department/{id}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records by department",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/stage/{stage}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records by stage",
                "parameters": [
                    {"name": "stage", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/assignee/{id}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records by assignee",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/initiator/{id}": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List tracking records by initiator",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{id}/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List documents for a tracking record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "documentType", "in": "formData", "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/documents/{documentId}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get document metadata with signed download URL",
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/documents/{documentId}/version": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a new document version",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/documents/{documentId}/versions": {
            "get": {
                "tags": ["Documents"],
                "summary": "List document versions",
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/documents/{documentId}/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download document via signed token",
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "409": {"description": "Job not finished"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "TrackingSearchRequest": {
            "type": "object",
            "properties": {
                "searchTerm": {"type": "string"},
                "schoolId": {"type": "string"},
                "departmentId": {"type": "string"},
                "status": {"type": "string"},
                "currentStage": {"type": "string"},
                "isOverdue": {"type": "boolean"},
                "isIdeationStage": {"type": "boolean"},
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"}
            }
        },
        "TrackingUpdateRequest": {
            "type": "object",
            "properties": {
                "proposedName": {"type": "string"},
                "proposedCode": {"type": "string"},
                "durationSemesters": {"type": "integer"},
                "description": {"type": "string"},
                "effectiveDate": {"type": "string"},
                "expiryDate": {"type": "string"},
                "expectedCompletionDate": {"type": "string"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["tracking_list", "approval_summary"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "trackingId": {"type": "string"},
                "schoolId": {"type": "string"},
                "departmentId": {"type": "string"},
                "stage": {"type": "string"}
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
                "status": {"type": "integer"}
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
