// Package docs registers the OpenAPI document served at /swagger. The paths
// mirror the godoc annotations on the handlers.
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
        "/health": {"get": {"tags": ["health"], "summary": "Engine health", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/health/live": {"get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/alerts": {"get": {"tags": ["alerts"], "summary": "List alerts", "parameters": [{"type": "string", "default": "open", "description": "open, resolved or all", "name": "status", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/alerts/{id}": {"get": {"tags": ["alerts"], "summary": "Get an alert", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/alerts/{id}/acknowledge": {"post": {"tags": ["alerts"], "summary": "Acknowledge an alert", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}},
        "/alerts/{id}/escalate": {"post": {"tags": ["alerts"], "summary": "Escalate an alert", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}},
        "/alerts/{id}/resolve": {"post": {"tags": ["alerts"], "summary": "Resolve an alert", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}},
        "/policies": {"get": {"tags": ["policies"], "summary": "List scaling policies", "responses": {"200": {"description": "OK"}}}},
        "/policies/{id}": {
            "get": {"tags": ["policies"], "summary": "Get a scaling policy", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"tags": ["policies"], "summary": "Create or replace a scaling policy", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}},
            "delete": {"tags": ["policies"], "summary": "Delete a scaling policy", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}}
        },
        "/policies/{id}/enabled": {"patch": {"tags": ["policies"], "summary": "Enable or disable a scaling policy", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/rules/reload": {"post": {"tags": ["policies"], "summary": "Reload the rules file", "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/thresholds": {
            "get": {"tags": ["thresholds"], "summary": "List alert thresholds", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["thresholds"], "summary": "Create or replace an alert threshold", "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/services": {"get": {"tags": ["services"], "summary": "List registered services", "responses": {"200": {"description": "OK"}}}},
        "/services/{name}": {
            "get": {"tags": ["services"], "summary": "Get a service's live state", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"tags": ["services"], "summary": "Register a service or update its bounds", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/services/{name}/override": {"post": {"tags": ["services"], "summary": "Manually set a service's instance count", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}},
        "/services/{name}/metrics/{metric}": {"get": {"tags": ["services"], "summary": "Recent samples for one service metric", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}, {"type": "string", "name": "metric", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/events": {"get": {"tags": ["events"], "summary": "List scaling events, newest first", "parameters": [{"type": "string", "name": "service", "in": "query"}, {"type": "string", "name": "source", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/events/stats": {"get": {"tags": ["events"], "summary": "Scaling statistics for one service", "parameters": [{"type": "string", "name": "service", "in": "query", "required": true}, {"type": "string", "name": "range", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "503": {"description": "Service Unavailable"}}}},
        "/projections": {"get": {"tags": ["projections"], "summary": "Latest capacity projections", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/projections/run": {"post": {"tags": ["projections"], "summary": "Run a capacity projection now", "responses": {"200": {"description": "OK"}}}},
        "/samples": {"post": {"tags": ["samples"], "summary": "Push metric samples", "consumes": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wedding Autoscaler API",
	Description:      "Scaling alerts, policies and capacity projections for wedding-platform services.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
