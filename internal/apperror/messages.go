package apperror

// messages maps error codes to default human-readable messages.
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidFormat:      "Invalid data format",
	CodeNotFound:           "Resource not found",
	CodeConfigurationError: "Configuration error",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",
	CodeInternalError:      "Internal server error",
	CodeUnknownError:       "An unknown error occurred",

	CodePricerUnauthorized:  "Pricing API rejected the access token",
	CodePricerAPIError:      "Pricing API request failed",
	CodePricerServerError:   "Pricing API server error",
	CodePricerFetchFailed:   "Failed to fetch prices from the pricing API",
	CodePricerAuthFailed:    "Failed to obtain a pricing API access token",
	CodePricerMalformedData: "Pricing API returned malformed data",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodePricelistInitFailed: "Pricelist initialization failed",
	CodePricelistRefreshing: "Pricelist refresh in progress",
	CodeItemNotFound:        "Item not found in pricelist",
	CodeInvalidSKU:          "Invalid SKU format",

	CodeWebhookSendFailed:  "Failed to deliver webhook",
	CodeWebhookRateLimited: "Webhook endpoint rate limited",
	CodeCircuitOpen:        "Webhook circuit breaker is open",

	CodeHistoryWriteFailed: "Failed to record price history",
	CodeHistoryQueryFailed: "Failed to query price history",
}
