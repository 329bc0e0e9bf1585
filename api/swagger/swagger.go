package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Thesis Workflow API",
        "description": "Topic proposal submission, staged review, and thesis creation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login, token refresh, and session info"},
        {"name": "Proposals", "description": "Proposal sets and entries per thesis group"},
        {"name": "Reviews", "description": "Reviewer queues, decisions, and history"},
        {"name": "Theses", "description": "Theses created from approved proposals"},
        {"name": "Reports", "description": "Review history exports"},
        {"name": "Streams", "description": "Server-sent event snapshots"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "responses": {
                    "200": {"description": "Access and refresh tokens"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current refresh token",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current session claims",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User info"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals": {
            "get": {
                "tags": ["Proposals"],
                "summary": "List proposal sets for a group",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Proposal sets, newest first"}
                }
            },
            "post": {
                "tags": ["Proposals"],
                "summary": "Create a proposal set",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created set"},
                    "409": {"description": "Another set is still in review"},
                    "422": {"description": "Set limit reached"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}": {
            "get": {
                "tags": ["Proposals"],
                "summary": "Fetch a proposal set",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Proposal set"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Add a topic entry to a draft set",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated set"},
                    "409": {"description": "Set is no longer editable"},
                    "422": {"description": "Entry limit reached"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId}": {
            "put": {
                "tags": ["Proposals"],
                "summary": "Update a topic entry",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated set"},
                    "404": {"description": "Entry not found"}
                }
            },
            "delete": {
                "tags": ["Proposals"],
                "summary": "Remove a topic entry",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated set"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/submit": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Submit a draft set into review",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Submitted set"},
                    "409": {"description": "Set already submitted"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId}/decision": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Record an approve or reject decision",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated set"},
                    "403": {"description": "Role does not review this stage"},
                    "409": {"description": "Entry is not at the requested stage"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/proposals/{setId}/entries/{entryId}/thesis": {
            "post": {
                "tags": ["Theses"],
                "summary": "Create a thesis from a fully approved entry",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Thesis reference"},
                    "409": {"description": "Entry not approved or already used"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/theses": {
            "get": {
                "tags": ["Theses"],
                "summary": "List theses for a group",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Thesis list"}
                }
            }
        },
        "/groups/{year}/{department}/{course}/{groupId}/theses/{thesisId}": {
            "get": {
                "tags": ["Theses"],
                "summary": "Fetch a thesis",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Thesis"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/reviews/queue/{stage}": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Pending entries awaiting a review stage",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Queue items ordered by submission time"},
                    "403": {"description": "Role does not review this stage"}
                }
            }
        },
        "/reviews/history": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Review decision history",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Review events"}
                }
            }
        },
        "/reports/proposals": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a review history export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job accepted"}
                }
            }
        },
        "/reports/proposals/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Job status with download URL when finished"},
                    "403": {"description": "Job belongs to another user"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export via signed token",
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
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
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
