package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "RD Studio Media API",
        "description": "Media library ingestion, storage and public lookup",
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
        {"name": "Media", "description": "Media collections and their items"},
        {"name": "Public", "description": "Unauthenticated media lookup"}
    ],
    "paths": {
        "/media": {
            "get": {
                "tags": ["Media"],
                "summary": "List own media collections",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "favorite", "in": "query", "type": "boolean"},
                    {"name": "media_type", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Media"],
                "summary": "Upload a media collection",
                "description": "File names follow <role>_<name> where role is front, middle, back or 0-2.",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "media_type", "in": "formData", "type": "string", "required": true},
                    {"name": "media_title", "in": "formData", "type": "string"},
                    {"name": "media_description", "in": "formData", "type": "string"},
                    {"name": "studio_name", "in": "formData", "type": "string"},
                    {"name": "event_date", "in": "formData", "type": "string", "format": "date"},
                    {"name": "instagram_profile_url", "in": "formData", "type": "string"},
                    {"name": "whatsapp_number", "in": "formData", "type": "string"},
                    {"name": "media_items", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/MediaCollectionEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate media id", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Upload failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/media/{id}": {
            "get": {
                "tags": ["Media"],
                "summary": "Get an own media collection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MediaCollectionEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Media"],
                "summary": "Update a media collection",
                "description": "Uploaded media_items replace every item; clear_items=true without files removes them all.",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "media_title", "in": "formData", "type": "string"},
                    {"name": "media_description", "in": "formData", "type": "string"},
                    {"name": "studio_name", "in": "formData", "type": "string"},
                    {"name": "event_date", "in": "formData", "type": "string", "format": "date"},
                    {"name": "instagram_profile_url", "in": "formData", "type": "string"},
                    {"name": "whatsapp_number", "in": "formData", "type": "string"},
                    {"name": "is_favorite", "in": "formData", "type": "boolean"},
                    {"name": "clear_items", "in": "formData", "type": "boolean"},
                    {"name": "media_items", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MediaCollectionEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Upload failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Media"],
                "summary": "Soft delete a media collection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/media/{id}/favorite": {
            "patch": {
                "tags": ["Media"],
                "summary": "Mark or unmark a collection as favorite",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetFavoriteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MediaCollectionEnvelope"}}
                }
            }
        },
        "/media/{id}/flipbook.pdf": {
            "get": {
                "tags": ["Media"],
                "summary": "Export a collection as a PDF flipbook",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}},
                    "400": {"description": "No images to export", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/media/external/{externalId}": {
            "get": {
                "tags": ["Public"],
                "summary": "Public lookup by external id",
                "parameters": [
                    {"name": "externalId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MediaCollectionEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SetFavoriteRequest": {
            "type": "object",
            "required": ["is_favorite"],
            "properties": {
                "is_favorite": {"type": "boolean"}
            }
        },
        "MediaItem": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "position": {"type": "integer"},
                "media_url": {"type": "string"},
                "media_item_title": {"type": "string"},
                "media_item_description": {"type": "string"},
                "page_type": {"type": "integer", "enum": [0, 1, 2]},
                "page_type_name": {"type": "string", "enum": ["Front", "Middle", "Back"]},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "MediaCollection": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "media_unique_id": {"type": "string"},
                "media_type": {"type": "integer", "enum": [0, 1, 2]},
                "media_type_name": {"type": "string", "enum": ["Image", "Video", "Flipbook"]},
                "media_title": {"type": "string"},
                "media_description": {"type": "string"},
                "studio_name": {"type": "string"},
                "event_date": {"type": "string", "format": "date"},
                "instagram_profile_url": {"type": "string"},
                "whatsapp_number": {"type": "string"},
                "is_favorite": {"type": "boolean"},
                "created_by": {"type": "string"},
                "is_active": {"type": "boolean"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "media_library_items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/MediaItem"}
                }
            }
        },
        "MediaCollectionEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/MediaCollection"},
                "error": {"$ref": "#/definitions/APIError"}
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
