// Package energy plans which household devices should be powered.
package energy

import (
	"time"

	"github.com/mbd888/verdict/internal/validation"
)

// Device names with fixed behavior.
const (
	Heating      = "Heating"
	Cooling      = "Cooling"
	Security     = "Security"
	Refrigerator = "Refrigerator"
)

// EssentialPriority is the priority kept on in energy-saving mode and when
// the daily limit is reached.
const EssentialPriority = 1

// Night mode runs from NightStart until NightEnd (exclusive), local to Now.
const (
	NightStart = 23
	NightEnd   = 6
)

// Schedule asks for a device to be switched on at a given minute.
type Schedule struct {
	Device string    `json:"device" validate:"required"`
	At     time.Time `json:"at"`
}

// Request is the household snapshot to plan for.
type Request struct {
	CurrentPrice       float64        `json:"currentPrice" validate:"gte=0"`
	PriceThreshold     float64        `json:"priceThreshold" validate:"gte=0"`
	DevicePriorities   map[string]int `json:"devicePriorities" validate:"required"`
	Now                time.Time      `json:"now"`
	CurrentTemperature float64        `json:"currentTemperature"`
	DesiredRange       [2]float64     `json:"desiredRange"`
	UsageLimit         float64        `json:"usageLimit" validate:"gte=0"`
	UsedToday          float64        `json:"usedToday" validate:"gte=0"`
	Schedules          []Schedule     `json:"schedules" validate:"dive"`
}

// Result is the device plan.
type Result struct {
	DeviceStatus                map[string]bool `json:"deviceStatus"`
	EnergySavingMode            bool            `json:"energySavingMode"`
	TemperatureRegulationActive bool            `json:"temperatureRegulationActive"`
}

// Validate reports malformed requests.
func Validate(req *Request) error {
	errs := validation.Struct(req)
	errs = append(errs, validation.Validate(
		validation.NonZeroTime("now", req.Now),
		desiredRange(req.DesiredRange),
	)...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func desiredRange(r [2]float64) func() *validation.ValidationError {
	return func() *validation.ValidationError {
		if r[0] > r[1] {
			return &validation.ValidationError{Field: "desiredRange", Message: "lower bound exceeds upper bound"}
		}
		return nil
	}
}

// IsNight reports whether t falls in the night window.
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= NightStart || h < NightEnd
}

// Plan applies, in order: price-based saving mode, night mode, temperature
// regulation, the daily usage limit and finally any schedule due this minute.
// Later steps override earlier ones.
func Plan(req Request) Result {
	res := Result{DeviceStatus: make(map[string]bool, len(req.DevicePriorities))}

	res.EnergySavingMode = req.CurrentPrice > req.PriceThreshold
	for device, priority := range req.DevicePriorities {
		res.DeviceStatus[device] = !res.EnergySavingMode || priority <= EssentialPriority
	}

	if IsNight(req.Now) {
		for device := range res.DeviceStatus {
			if device != Security && device != Refrigerator {
				res.DeviceStatus[device] = false
			}
		}
	}

	switch low, high := req.DesiredRange[0], req.DesiredRange[1]; {
	case req.CurrentTemperature < low:
		res.DeviceStatus[Heating] = true
		res.DeviceStatus[Cooling] = false
		res.TemperatureRegulationActive = true
	case req.CurrentTemperature > high:
		res.DeviceStatus[Heating] = false
		res.DeviceStatus[Cooling] = true
		res.TemperatureRegulationActive = true
	default:
		res.DeviceStatus[Heating] = false
		res.DeviceStatus[Cooling] = false
	}

	if req.UsedToday >= req.UsageLimit {
		for device, priority := range req.DevicePriorities {
			if priority > EssentialPriority {
				res.DeviceStatus[device] = false
			}
		}
	}

	now := req.Now.Truncate(time.Minute)
	for _, s := range req.Schedules {
		if s.At.Truncate(time.Minute).Equal(now) {
			res.DeviceStatus[s.Device] = true
		}
	}

	return res
}
