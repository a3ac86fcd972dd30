//go:build swagger

package httpapi

import "github.com/swaggo/swag"

// apiDoc serves the OpenAPI document read by the Swagger UI handler.
type apiDoc struct{}

func (apiDoc) ReadDoc() string { return apiDocJSON }

func init() {
	swag.Register(swag.Name, apiDoc{})
}

const apiDocJSON = `{
  "swagger": "2.0",
  "info": {
    "title": "ingestd API",
    "description": "Blocking ingest event gate: producers emit, a single listener resolves.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http"],
  "paths": {
    "/emit": {
      "post": {
        "summary": "Emit one payload and block until the listener resolves it",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/EmitRequest"}}],
        "responses": {
          "200": {"description": "cycle completed", "schema": {"$ref": "#/definitions/EmitResponse"}},
          "429": {"description": "another emit is in flight", "schema": {"$ref": "#/definitions/EmitResponse"}},
          "502": {"description": "listener left or dispatch failed", "schema": {"$ref": "#/definitions/EmitResponse"}},
          "503": {"description": "no listener subscribed", "schema": {"$ref": "#/definitions/EmitResponse"}},
          "504": {"description": "no outcome within the emit timeout", "schema": {"$ref": "#/definitions/EmitResponse"}}
        }
      }
    },
    "/resolve": {
      "post": {
        "summary": "Report the outcome of the armed cycle",
        "consumes": ["application/json"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveRequest"}}],
        "responses": {
          "204": {"description": "resolved"},
          "400": {"description": "invalid outcome", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "409": {"description": "nothing armed, already resolved or stale cycle", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/status": {"get": {"summary": "Gate snapshot", "produces": ["application/json"], "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/StatusResponse"}}}}},
    "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "ok"}}}},
    "/readyz": {"get": {"summary": "Ready when a listener is subscribed", "responses": {"200": {"description": "ready"}, "503": {"description": "no listener"}}}},
    "/listen": {"get": {"summary": "Listener WebSocket", "responses": {"101": {"description": "upgraded"}, "409": {"description": "a listener is already attached"}}}}
  },
  "definitions": {
    "EmitRequest": {"type": "object", "required": ["payload"], "properties": {"payload": {"type": "string"}}},
    "EmitResponse": {"type": "object", "properties": {"ok": {"type": "boolean"}, "reason": {"type": "string"}, "error": {"type": "string"}}},
    "ResolveRequest": {"type": "object", "required": ["outcome"], "properties": {"id": {"type": "string"}, "outcome": {"type": "string", "enum": ["success", "failure"]}}},
    "ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}},
    "StatusResponse": {
      "type": "object",
      "properties": {
        "listening": {"type": "boolean"},
        "armed": {"type": "boolean"},
        "cycle_id": {"type": "string"},
        "last_cycle_id": {"type": "string"},
        "last_outcome": {"type": "string"},
        "emits_total": {"type": "integer"},
        "successes_total": {"type": "integer"},
        "failures_total": {"type": "integer"},
        "timeouts_total": {"type": "integer"},
        "no_listener_total": {"type": "integer"},
        "busy_total": {"type": "integer"},
        "protocol_violations_total": {"type": "integer"},
        "emit_timeout_ms": {"type": "integer"},
        "uptime_seconds": {"type": "integer"},
        "server_time_unix": {"type": "integer"}
      }
    }
  }
}`
