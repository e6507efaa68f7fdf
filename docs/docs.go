// Package docs provides the OpenAPI document served on /docs/ via Swagger UI.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "Authorization",
            "description": "JWT access token. Format: 'Bearer <token>'"
        },
        "InterviewToken": {
            "type": "apiKey",
            "in": "header",
            "name": "X-Interview-Token",
            "description": "Public token of a guest interview session (also accepted as the 't' query parameter)"
        }
    },
    "paths": {
        "/register/": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new account",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error or email/username taken"}
                }
            }
        },
        "/token/": {
            "post": {
                "tags": ["auth"],
                "summary": "Obtain an access/refresh token pair",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/token/refresh/": {
            "post": {
                "tags": ["auth"],
                "summary": "Exchange a refresh token for a new access token",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Token is invalid or expired"}
                }
            }
        },
        "/me/": {
            "get": {
                "tags": ["profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Current user's profile",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Update the current user's profile",
                "responses": {"200": {"description": "OK"}}
            },
            "patch": {
                "tags": ["profile"],
                "security": [{"BearerAuth": []}],
                "summary": "Partially update the current user's profile",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/interviews/": {
            "get": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}],
                "summary": "List the caller's interview sessions",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["interviews"],
                "summary": "Create a session with an initial question batch (anonymous callers get a guest session with a one-time public token)",
                "responses": {
                    "201": {"description": "Created"},
                    "502": {"description": "Interview engine failure"}
                }
            }
        },
        "/interviews/{id}/": {
            "get": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}, {"InterviewToken": []}],
                "summary": "Session detail with ordered questions",
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the owner / missing interview token"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/interviews/{id}/generate/": {
            "post": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}, {"InterviewToken": []}],
                "summary": "Append engine-generated questions, skipping duplicates",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "No new questions generated"}
                }
            }
        },
        "/interviews/{id}/questions/{order}/": {
            "patch": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}, {"InterviewToken": []}],
                "summary": "Record an answer for the question at the given order",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Question not found"}
                }
            },
            "delete": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}, {"InterviewToken": []}],
                "summary": "Delete the question at the given order",
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Question not found"}
                }
            }
        },
        "/interviews/{id}/evaluate/": {
            "post": {
                "tags": ["interviews"],
                "security": [{"BearerAuth": []}, {"InterviewToken": []}],
                "summary": "Evaluate all answered questions and complete the session",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Missing answers"},
                    "502": {"description": "Interview engine failure or incomplete results"}
                }
            }
        },
        "/admin/users/": {
            "get": {
                "tags": ["admin"],
                "security": [{"BearerAuth": []}],
                "summary": "List all users (staff only)",
                "responses": {"200": {"description": "OK"}, "403": {"description": "Not staff"}}
            }
        },
        "/admin/interviews/": {
            "get": {
                "tags": ["admin"],
                "security": [{"BearerAuth": []}],
                "summary": "List all sessions, filterable by status and level (staff only)",
                "responses": {"200": {"description": "OK"}, "403": {"description": "Not staff"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "ICAI Interview Platform API",
	Description:      "Backend API for AI-driven mock interviews: accounts, interview sessions, question generation and evaluation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
