package models

import "fmt"

// The enum columns are stored as plain integers; every decode goes through
// an exhaustive switch and unknown values come back as errors, never as a
// silently reinterpreted constant.

// Currency identifies a bank currency.
type Currency int32

const (
	// CurrencyUTC is Universal Trade Credits, the only currency in
	// circulation today.
	CurrencyUTC Currency = 0
)

// ParseCurrency decodes a stored/wire currency integer.
func ParseCurrency(v int32) (Currency, error) {
	switch Currency(v) {
	case CurrencyUTC:
		return CurrencyUTC, nil
	default:
		return 0, fmt.Errorf("unknown currency %d", v)
	}
}

func (c Currency) String() string {
	switch c {
	case CurrencyUTC:
		return "UTC"
	default:
		return fmt.Sprintf("Currency(%d)", int32(c))
	}
}

// OrderStatus is the order state machine position.
type OrderStatus int32

const (
	OrderPlaced         OrderStatus = 0
	OrderOutForDelivery OrderStatus = 1
	OrderDelivered      OrderStatus = 2
	OrderFailed         OrderStatus = 3
	// OrderReversed is terminal and reachable only through the anti-cheat
	// rollback, never via a client status update.
	OrderReversed OrderStatus = 4
)

// ParseOrderStatus decodes a stored/wire status integer.
func ParseOrderStatus(v int32) (OrderStatus, error) {
	switch OrderStatus(v) {
	case OrderPlaced, OrderOutForDelivery, OrderDelivered, OrderFailed, OrderReversed:
		return OrderStatus(v), nil
	default:
		return 0, fmt.Errorf("unknown order status %d", v)
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderPlaced:
		return "Placed"
	case OrderOutForDelivery:
		return "OutForDelivery"
	case OrderDelivered:
		return "Delivered"
	case OrderFailed:
		return "Failed"
	case OrderReversed:
		return "Reversed"
	default:
		return fmt.Sprintf("OrderStatus(%d)", int32(s))
	}
}

// OrderResult is the placement/withdrawal outcome vocabulary.
type OrderResult int32

const (
	ResultRejected        OrderResult = 0
	ResultAcceptedAll     OrderResult = 1
	ResultAcceptedPartial OrderResult = 2
)

func (r OrderResult) String() string {
	switch r {
	case ResultRejected:
		return "Rejected"
	case ResultAcceptedAll:
		return "AcceptedAll"
	case ResultAcceptedPartial:
		return "AcceptedPartial"
	default:
		return fmt.Sprintf("OrderResult(%d)", int32(r))
	}
}

// Platform identifies the client platform a colony plays on.
type Platform int32

const (
	PlatformWindows Platform = 0
	PlatformMac     Platform = 1
	PlatformLinux   Platform = 2
)

// ParsePlatform decodes a stored/wire platform integer.
func ParsePlatform(v int32) (Platform, error) {
	switch Platform(v) {
	case PlatformWindows, PlatformMac, PlatformLinux:
		return Platform(v), nil
	default:
		return 0, fmt.Errorf("unknown platform %d", v)
	}
}
