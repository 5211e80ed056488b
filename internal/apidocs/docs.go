// Package apidocs holds the OpenAPI document served by the Swagger UI.
// Regenerate with `make swagger-gen` after changing handler annotations.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "servingd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/serving/serve/{name}/{version}": {
            "post": {
                "tags": ["serving"],
                "summary": "Serve a model version",
                "description": "Spawns the model server if needed and returns its port.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Registered model name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Model version", "name": "version", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        },
        "/serving/kill/{name}/{version}": {
            "post": {
                "tags": ["serving"],
                "summary": "Kill a live model",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Registered model name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Model version", "name": "version", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        },
        "/serving/endpoints": {
            "get": {
                "tags": ["serving"],
                "summary": "List live model endpoints",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        },
        "/serving/predict/{name}/{version}": {
            "post": {
                "tags": ["serving"],
                "summary": "Predict with a model version",
                "description": "Forwards a split-orient payload to the model server, spawning it on demand.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Registered model name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Model version", "name": "version", "in": "path", "required": true},
                    {"description": "Split-orient payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PredictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "406": {"description": "Not Acceptable", "schema": {"$ref": "#/definitions/types.Outcome"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        },
        "/serving/sweep": {
            "post": {
                "tags": ["serving"],
                "summary": "Evict idle models now",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        },
        "/serving/activity": {
            "get": {
                "tags": ["serving"],
                "summary": "Recent lifecycle events",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Outcome"}}
                }
            }
        }
    },
    "definitions": {
        "types.Outcome": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "message": {"type": "string", "example": "Serving (ElasticNet, 3): (5001, 12345, 1700000000)"},
                "data": {}
            }
        },
        "types.PredictRequest": {
            "type": "object",
            "properties": {
                "columns": {"type": "array", "items": {"type": "string"}, "example": ["alcohol", "chlorides"]},
                "index": {"type": "array", "items": {}},
                "data": {"type": "array", "items": {"type": "array", "items": {}}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "servingd API",
	Description:      "On-demand model serving: spawns, proxies and evicts model server processes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
