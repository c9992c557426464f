package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the document service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>coedit API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "coedit-documents", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "code": {"type":"string"} } },
      "Delta": { "type": "object", "properties": { "ops": { "type": "array", "items": { "type": "object" } } } },
      "Version": { "type": "object", "properties": { "versionId":{"type":"string"}, "documentId":{"type":"string"}, "blobKey":{"type":"string"}, "authorId":{"type":"string"}, "commitMessage":{"type":"string"}, "createdAt":{"type":"string","format":"date-time"}, "contentType":{"type":"string"}, "sizeBytes":{"type":"integer"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/documents": {
      "get": { "summary": "List the caller's documents", "responses": { "200": { "description": "documents" } } },
      "post": { "summary": "Create a document", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"}}}}}}, "responses": { "201": { "description": "created" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "403": { "description": "forbidden" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a document and its versions (owner only)", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/documents/{id}/collaborators": {
      "post": { "summary": "Add a collaborator (owner only)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"userId":{"type":"string"}}}}}}, "responses": { "200": { "description": "document" } } }
    },
    "/api/documents/{id}/share": {
      "post": { "summary": "Get or mint the document's share key (owner only)", "responses": { "200": { "description": "shareKey" }, "403": { "description": "forbidden" } } }
    },
    "/api/documents/{id}/join-with-key": {
      "post": { "summary": "Join as a collaborator with a share key", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"shareKey":{"type":"string"}}}}}}, "responses": { "200": { "description": "document" }, "403": { "description": "share key does not match" } } }
    },
    "/api/documents/{id}/snapshot": {
      "post": { "summary": "Commit content as a new version", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"content":{"$ref":"#/components/schemas/Delta"},"delta":{"$ref":"#/components/schemas/Delta"},"commitMessage":{"type":"string"}}}}}}, "responses": { "201": { "description": "versionId, blobKey, createdAt" }, "503": { "description": "snapshot storage failed" } } }
    },
    "/api/documents/{id}/versions": {
      "get": { "summary": "Version history, newest first", "responses": { "200": { "description": "versions" } } }
    },
    "/api/documents/{id}/versions/{versionId}": {
      "get": { "summary": "Materialize a version", "responses": { "200": { "description": "versionId, content" }, "502": { "description": "corrupt snapshot" } } }
    },
    "/api/documents/{id}/versions/{versionId}/text": {
      "get": { "summary": "Version as plain text", "responses": { "200": { "description": "text/plain" } } }
    },
    "/api/documents/{id}/versions/{versionId}/rollback": {
      "post": { "summary": "Restore a version as the live content and commit it", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"commitMessage":{"type":"string"}}}}}}, "responses": { "201": { "description": "new version" }, "500": { "description": "rollback_applied_but_not_committed" }, "503": { "description": "live channel unavailable" } } }
    },
    "/api/documents/{id}/compare": {
      "get": { "summary": "Two versions as plain text", "parameters": [ {"name":"from","in":"query","required":true,"schema":{"type":"string"}}, {"name":"to","in":"query","required":true,"schema":{"type":"string"}} ], "responses": { "200": { "description": "fromText, toText" } } }
    },
    "/api/versions/{versionId}": {
      "get": { "summary": "Materialize a version by its id", "responses": { "200": { "description": "versionId, documentId, content" } } }
    },
    "/api/uploads": {
      "post": { "summary": "Signed PUT URL for an attachment", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"fileName":{"type":"string"},"fileType":{"type":"string"},"fileSize":{"type":"integer"}}}}}}, "responses": { "200": { "description": "uploadUrl, fileKey" } } }
    },
    "/api/download": {
      "post": { "summary": "Signed GET URL for a blob", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"fileKey":{"type":"string"},"documentId":{"type":"string"}}}}}}, "responses": { "200": { "description": "downloadUrl" } } }
    },
    "/ws": { "get": { "summary": "Live editing websocket", "responses": { "101": { "description": "switching protocols" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
