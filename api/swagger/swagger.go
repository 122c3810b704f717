package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Academic Records API",
        "description": "Academic records administration with bulk CSV reconciliation",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Personnel authentication"},
        {"name": "Personnel", "description": "Personnel accounts and role records"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Schedules", "description": "Per-student course selections"},
        {"name": "Imports", "description": "CSV snapshot reconciliation"},
        {"name": "Exports", "description": "CSV/PDF snapshot exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate by personnel code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/personnel": {
            "get": {
                "tags": ["Personnel"],
                "summary": "List personnel",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Personnel"],
                "summary": "Create or update one personnel account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PersonUpsertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate coordinator"}
                }
            }
        },
        "/personnel/{code}": {
            "get": {
                "tags": ["Personnel"],
                "summary": "Personnel detail with role records",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Personnel"],
                "summary": "Delete one personnel account",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Protected account"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"},
                    {"name": "tutor", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Create or update one student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentUpsertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Tutor code does not resolve"}
                }
            }
        },
        "/students/{code}": {
            "get": {
                "tags": ["Students"],
                "summary": "Student detail",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete one student",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"},
                    {"name": "instructor", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Create or update one course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseUpsertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Instructor slot conflict"}
                }
            }
        },
        "/courses/{code}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course detail",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete one course",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Submit a course selection",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleSubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Course full or schedule exists"}
                }
            }
        },
        "/schedules/{code}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "A student's schedule",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Withdraw a schedule and release its seats",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules/{code}/review": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Accept or reject a submitted schedule",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/imports": {
            "post": {
                "tags": ["Imports"],
                "summary": "Reconcile a CSV snapshot",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "entity", "in": "formData", "required": true, "type": "string"},
                    {"name": "program", "in": "formData", "type": "string"},
                    {"name": "async", "in": "formData", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed header"}
                }
            }
        },
        "/imports/runs": {
            "get": {
                "tags": ["Imports"],
                "summary": "Recent import runs",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/imports/runs/{id}": {
            "get": {
                "tags": ["Imports"],
                "summary": "Import run status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/personnel": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the personnel snapshot as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV"}
                }
            }
        },
        "/exports/students": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the student snapshot as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV"}
                }
            }
        },
        "/exports/courses": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the course snapshot as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV"}
                }
            }
        },
        "/exports/schedules/{code}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export a student's schedule as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["code", "password"],
            "properties": {
                "code": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "PersonUpsertRequest": {
            "type": "object",
            "required": ["code", "name"],
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "credential": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "program": {"type": "string"},
                "max_weekly_hours": {"type": "integer"},
                "receipt_enabled": {"type": "boolean"}
            }
        },
        "StudentUpsertRequest": {
            "type": "object",
            "required": ["code", "name", "program"],
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "program": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "tutor": {"type": "string"},
                "receipt_status": {"type": "string"}
            }
        },
        "CourseUpsertRequest": {
            "type": "object",
            "required": ["code", "name", "program", "capacity"],
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "program": {"type": "string"},
                "room": {"type": "string"},
                "group": {"type": "string"},
                "capacity": {"type": "integer"},
                "lab": {"type": "boolean"},
                "slots": {"type": "object"},
                "reduced": {"type": "boolean"},
                "instructor": {"type": "string"}
            }
        },
        "ScheduleSubmitRequest": {
            "type": "object",
            "required": ["student_code", "course_codes"],
            "properties": {
                "student_code": {"type": "string"},
                "course_codes": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ScheduleReviewRequest": {
            "type": "object",
            "properties": {
                "accept": {"type": "boolean"},
                "comment": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
