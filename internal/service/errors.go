package service

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNoShipment     = errors.New("order has no shipment")
	ErrShipmentExists = errors.New("order already has a shipment")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotifyFailed   = errors.New("notification could not be queued")
)
