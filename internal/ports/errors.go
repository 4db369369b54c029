package ports

import "errors"

// Standard application-level errors. Adapters and core components wrap
// underlying failures with these sentinels so callers can classify them
// without knowing the implementation.
var (
	// General errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrNotFound        = errors.New("resource not found")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")
	ErrConfiguration   = errors.New("invalid or missing configuration")

	// Market data errors (recoverable: log, skip the cycle, retry next interval)
	ErrDataFetch          = errors.New("market data fetch failed")
	ErrGatewayUnavailable = errors.New("gateway API is unavailable")
	ErrRateLimited        = errors.New("API rate limit exceeded")
	ErrStalePoint         = errors.New("price point is not newer than the stored series")
	ErrStaleData          = errors.New("price data exceeds the staleness tolerance")

	// Ledger errors (order never reaches the execution gateway)
	ErrOrderRejected     = errors.New("order rejected")
	ErrPositionExists    = errors.New("an open position already exists for the pair")
	ErrNoOpenPosition    = errors.New("no open position for the pair")
	ErrInsufficientFunds = errors.New("insufficient funds for the order")
	ErrTradeCapExceeded  = errors.New("trade amount exceeds the configured cap")
	ErrDailyLimitReached = errors.New("daily trade limit reached")
	ErrAlreadyResolved   = errors.New("order already reached a terminal status")
	ErrOrderNotFound     = errors.New("order not found in the ledger")

	// Execution errors (position state left unchanged; retried only if the
	// next cycle independently re-signals)
	ErrExecutionFailed = errors.New("order execution failed")

	// Database errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
