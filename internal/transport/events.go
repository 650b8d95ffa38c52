package transport

import (
	"errors"
	"strings"
	"time"
)

// Offer reports that a bot proposed a DCC send.
type Offer struct {
	Bot      string `json:"bot" validate:"required"`
	Filename string `json:"filename" validate:"required"`
	Size     int64  `json:"size" validate:"gte=0"`
	Address  string `json:"address"`
}

// Connect reports that the transfer connection was established.
type Connect struct {
	Bot      string `json:"bot" validate:"required"`
	Address  string `json:"address"`
	Filename string `json:"filename" validate:"required"`
}

// Complete reports a finished receive.
type Complete struct {
	Filename    string        `json:"filename" validate:"required"`
	Destination string        `json:"destination"`
	Bot         string        `json:"bot"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Failed reports an aborted receive.
type Failed struct {
	Filename    string `json:"filename" validate:"required"`
	Destination string `json:"destination"`
	Bot         string `json:"bot"`
	Error       string `json:"error"`
}

// Direction of a stalled transfer.
type Direction string

const (
	DirectionReceive Direction = "RECV"
	DirectionSend    Direction = "SEND"
)

// Stalled reports a transfer that stopped making progress.
type Stalled struct {
	Direction Direction `json:"direction" validate:"required"`
	Filename  string    `json:"filename" validate:"required"`
	Bot       string    `json:"bot"`
}

var errMissingFilename = errors.New("transport: event missing filename")

func (e Offer) Validate() error {
	if strings.TrimSpace(e.Filename) == "" {
		return errMissingFilename
	}
	if strings.TrimSpace(e.Bot) == "" {
		return errors.New("transport: offer missing bot")
	}
	return nil
}

func (e Connect) Validate() error {
	if strings.TrimSpace(e.Filename) == "" {
		return errMissingFilename
	}
	return nil
}

func (e Complete) Validate() error {
	if strings.TrimSpace(e.Filename) == "" {
		return errMissingFilename
	}
	return nil
}

func (e Failed) Validate() error {
	if strings.TrimSpace(e.Filename) == "" {
		return errMissingFilename
	}
	return nil
}

func (e Stalled) Validate() error {
	if strings.TrimSpace(e.Filename) == "" {
		return errMissingFilename
	}
	switch Direction(strings.ToUpper(string(e.Direction))) {
	case DirectionReceive, DirectionSend:
		return nil
	default:
		return errors.New("transport: stalled event has unknown direction")
	}
}

// Receiving reports whether the stall concerns an incoming transfer.
func (e Stalled) Receiving() bool {
	return Direction(strings.ToUpper(string(e.Direction))) == DirectionReceive
}
