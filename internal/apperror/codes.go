package apperror

// Code is a stable, machine-matchable error identifier.
type Code string

// General codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Pricer (upstream pricing API) codes
const (
	CodePricerUnauthorized  Code = "PRICER_UNAUTHORIZED"
	CodePricerAPIError      Code = "PRICER_API_ERROR"
	CodePricerServerError   Code = "PRICER_SERVER_ERROR"
	CodePricerFetchFailed   Code = "PRICER_FETCH_FAILED"
	CodePricerAuthFailed    Code = "PRICER_AUTH_FAILED"
	CodePricerMalformedData Code = "PRICER_MALFORMED_DATA"
)

// Streaming connection codes
const (
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
)

// Pricelist store codes
const (
	CodePricelistInitFailed Code = "PRICELIST_INIT_FAILED"
	CodePricelistRefreshing Code = "PRICELIST_REFRESHING"
	CodeItemNotFound        Code = "ITEM_NOT_FOUND"
	CodeInvalidSKU          Code = "INVALID_SKU"
)

// Notification codes
const (
	CodeWebhookSendFailed  Code = "WEBHOOK_SEND_FAILED"
	CodeWebhookRateLimited Code = "WEBHOOK_RATE_LIMITED"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
)

// History journal codes
const (
	CodeHistoryWriteFailed Code = "HISTORY_WRITE_FAILED"
	CodeHistoryQueryFailed Code = "HISTORY_QUERY_FAILED"
)
