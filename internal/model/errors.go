package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable marks a symbol whose snapshot could not be fetched or is unusable.
	// The scan skips the symbol and continues.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrUnknownSymbol is returned by market data clients for symbols the exchange does not list.
	ErrUnknownSymbol = fmt.Errorf("%w: unknown symbol", ErrDataUnavailable)

	// ErrNoOpportunity is the normal outcome of evaluating a symbol without a positive spread.
	ErrNoOpportunity = errors.New("no arbitrage opportunity")

	// ErrDeliveryFailed marks a failed notification or persistence call.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrFatalSetup aborts the whole run before any work starts.
	ErrFatalSetup = errors.New("fatal setup error")

	// ErrNoData aborts a scan when no market data could be obtained at all.
	ErrNoData = errors.New("no market data obtained")
)
