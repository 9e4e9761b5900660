// Package docs registers the OpenAPI document served at /swagger/doc.json.
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
        "/webhooks/stripe": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Receive a Stripe webhook event",
                "parameters": [
                    {"type": "string", "description": "Stripe signature header", "name": "Stripe-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WebhookAck"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/subscriptions/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["subscriptions"],
                "summary": "Start a checkout session for a plan",
                "parameters": [
                    {"description": "Plan to purchase", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.SubscriptionCheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CheckoutSessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/subscriptions/portal": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["subscriptions"],
                "summary": "Open the billing portal",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.PortalSessionResponse"}}
                }
            }
        },
        "/subscriptions/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["subscriptions"],
                "summary": "Get the current user's subscription",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.SubscriptionResponseDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/subscriptions/plans": {
            "get": {
                "produces": ["application/json"],
                "tags": ["subscriptions"],
                "summary": "List purchasable plans",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.PlanResponseDTO"}}}
                }
            }
        },
        "/tokens/check": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tokens"],
                "summary": "Check whether the balance covers a cost",
                "parameters": [
                    {"description": "Cost to check", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.TokenCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TokenCheckResponse"}}
                }
            }
        },
        "/tokens/deduct": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tokens"],
                "summary": "Debit tokens for work performed elsewhere",
                "parameters": [
                    {"description": "Cost and reason", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.TokenDeductRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.TokenDeductResponse"}}
                }
            }
        },
        "/tokens/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tokens"],
                "summary": "Get the current balance",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.BalanceResponseDTO"}}
                }
            }
        },
        "/tokens/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tokens"],
                "summary": "List ledger transactions",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.TransactionResponseDTO"}}}
                }
            }
        },
        "/generations/{operation}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generations"],
                "summary": "Run a metered generation operation",
                "parameters": [
                    {"type": "string", "description": "model, dress, edit or video", "name": "operation", "in": "path", "required": true},
                    {"description": "Generation input", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.GenerationRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.GenerationResponseDTO"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.JobResponseDTO"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/dto.InsufficientTokensResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/generations/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["generations"],
                "summary": "Get an asynchronous generation job",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.JobResponseDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/captions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generations"],
                "summary": "Generate social captions",
                "parameters": [
                    {"description": "Caption input", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CaptionRequestDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/assets": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["generations"],
                "summary": "List generated assets",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/dto.AssetResponseDTO"}}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}}},
        "dto.WebhookAck": {"type": "object", "properties": {"received": {"type": "boolean"}}},
        "dto.SubscriptionCheckoutRequest": {"type": "object", "required": ["plan_id"], "properties": {"plan_id": {"type": "string"}}},
        "dto.CheckoutSessionResponse": {"type": "object", "properties": {"session_id": {"type": "string"}, "url": {"type": "string"}}},
        "dto.PortalSessionResponse": {"type": "object", "properties": {"url": {"type": "string"}}},
        "dto.SubscriptionResponseDTO": {"type": "object"},
        "dto.PlanResponseDTO": {"type": "object"},
        "dto.TokenCheckRequest": {"type": "object", "required": ["cost"], "properties": {"cost": {"type": "integer"}}},
        "dto.TokenCheckResponse": {"type": "object", "properties": {"has_tokens": {"type": "boolean"}, "balance": {"type": "integer"}}},
        "dto.TokenDeductRequest": {"type": "object", "required": ["cost"], "properties": {"cost": {"type": "integer"}, "reason": {"type": "string"}}},
        "dto.TokenDeductResponse": {"type": "object", "properties": {"success": {"type": "boolean"}, "balance_after": {"type": "integer"}}},
        "dto.BalanceResponseDTO": {"type": "object"},
        "dto.TransactionResponseDTO": {"type": "object"},
        "dto.GenerationRequestDTO": {"type": "object"},
        "dto.GenerationResponseDTO": {"type": "object"},
        "dto.InsufficientTokensResponse": {"type": "object", "properties": {"error": {"type": "string"}, "required": {"type": "integer"}, "balance": {"type": "integer"}}},
        "dto.JobResponseDTO": {"type": "object"},
        "dto.CaptionRequestDTO": {"type": "object"},
        "dto.AssetResponseDTO": {"type": "object"}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Fashion Studio Billing API",
	Description:      "Token ledger, generation metering and subscription billing",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
