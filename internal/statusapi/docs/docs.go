// Package docs is the hand-maintained, swag-format swagger specification for
// internal/statusapi, registered with the swag spec registry so
// gin-swagger's WrapHandler can serve it at /swagger/index.html.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatusResponse"}}
                }
            }
        },
        "/status/cache": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Cache statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.CacheStatsResponse"}}
                }
            }
        },
        "/status/queries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Active query count",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.QueriesStatsResponse"}}
                }
            }
        },
        "/status/upstreams": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Upstream health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.UpstreamsResponse"}}
                }
            }
        },
        "/status/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Server statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.StatsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.StatusResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}}
        },
        "models.CacheStatsResponse": {
            "type": "object",
            "properties": {
                "entries": {"type": "integer"},
                "neg_entries": {"type": "integer"},
                "hits": {"type": "integer"},
                "misses": {"type": "integer"},
                "negative_hits": {"type": "integer"}
            }
        },
        "models.QueriesStatsResponse": {
            "type": "object",
            "properties": {"active": {"type": "integer"}}
        },
        "models.UpstreamsResponse": {
            "type": "object",
            "properties": {
                "upstreams": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/models.UpstreamStatResponse"}
                }
            }
        },
        "models.UpstreamStatResponse": {
            "type": "object",
            "properties": {
                "successes": {"type": "integer"},
                "failures": {"type": "integer"}
            }
        },
        "models.StatsResponse": {
            "type": "object",
            "properties": {
                "uptime": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "start_time": {"type": "string"},
                "cpu": {"type": "object"},
                "memory": {"type": "object"},
                "cache": {"$ref": "#/definitions/models.CacheStatsResponse"},
                "queries": {"$ref": "#/definitions/models.QueriesStatsResponse"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported swagger spec metadata describing the status
// API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "goresolv status API",
	Description:      "Read-only introspection over a running resolver: cache occupancy, in-flight queries, and upstream health.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
