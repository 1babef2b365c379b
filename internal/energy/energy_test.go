package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/verdict/internal/validation"
)

var noon = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func household() Request {
	return Request{
		CurrentPrice:   0.15,
		PriceThreshold: 0.20,
		DevicePriorities: map[string]int{
			Heating:      1,
			Cooling:      1,
			Security:     1,
			Refrigerator: 1,
			"Lights":     2,
			"Appliances": 3,
			"Oven":       3,
		},
		Now:                noon,
		CurrentTemperature: 22.0,
		DesiredRange:       [2]float64{20.0, 24.0},
		UsageLimit:         50.0,
		UsedToday:          25.0,
	}
}

func TestPlan_EnergySavingModeAbovePriceThreshold(t *testing.T) {
	req := household()
	req.CurrentPrice = 0.25
	req.CurrentTemperature = 19.0

	res := Plan(req)
	assert.True(t, res.EnergySavingMode)
	assert.True(t, res.DeviceStatus[Heating])
	assert.True(t, res.DeviceStatus[Security])
	assert.False(t, res.DeviceStatus["Lights"])
	assert.False(t, res.DeviceStatus["Appliances"])
}

func TestPlan_PriceAtThresholdIsNotSaving(t *testing.T) {
	req := household()
	req.CurrentPrice = req.PriceThreshold

	res := Plan(req)
	assert.False(t, res.EnergySavingMode)
	assert.True(t, res.DeviceStatus["Lights"])
}

func TestPlan_NightMode(t *testing.T) {
	for _, at := range []time.Time{
		time.Date(2024, 10, 1, 23, 30, 0, 0, time.UTC),
		time.Date(2024, 10, 1, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 2, 5, 59, 0, 0, time.UTC),
	} {
		t.Run(at.Format("15:04"), func(t *testing.T) {
			req := household()
			req.Now = at
			req.CurrentTemperature = 19.0

			res := Plan(req)
			assert.True(t, res.DeviceStatus[Security])
			assert.True(t, res.DeviceStatus[Refrigerator])
			assert.False(t, res.DeviceStatus["Lights"])
			assert.False(t, res.DeviceStatus["Appliances"])
		})
	}
}

func TestPlan_SixInTheMorningIsDay(t *testing.T) {
	req := household()
	req.Now = time.Date(2024, 10, 2, 6, 0, 0, 0, time.UTC)
	assert.True(t, Plan(req).DeviceStatus["Lights"])
}

func TestPlan_TemperatureRegulation(t *testing.T) {
	tests := []struct {
		name       string
		temp       float64
		heating    bool
		cooling    bool
		regulating bool
	}{
		{"below range heats", 19.0, true, false, true},
		{"above range cools", 25.0, false, true, true},
		{"inside range idles", 22.0, false, false, false},
		{"at lower bound idles", 20.0, false, false, false},
		{"at upper bound idles", 24.0, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := household()
			req.CurrentTemperature = tt.temp

			res := Plan(req)
			assert.Equal(t, tt.regulating, res.TemperatureRegulationActive)
			assert.Equal(t, tt.heating, res.DeviceStatus[Heating])
			assert.Equal(t, tt.cooling, res.DeviceStatus[Cooling])
		})
	}
}

func TestPlan_UsageLimitReached(t *testing.T) {
	req := household()
	req.UsageLimit = 30.0
	req.UsedToday = 31.0

	res := Plan(req)
	assert.True(t, res.DeviceStatus[Security])
	assert.False(t, res.DeviceStatus["Lights"])
	assert.False(t, res.DeviceStatus["Appliances"])
}

func TestPlan_ScheduleOverridesSavingMode(t *testing.T) {
	req := household()
	req.CurrentPrice = 0.25
	req.Schedules = []Schedule{{Device: "Oven", At: noon}}

	res := Plan(req)
	assert.True(t, res.DeviceStatus["Oven"])
	assert.False(t, res.DeviceStatus["Lights"])
	assert.False(t, res.DeviceStatus["Appliances"])
}

func TestPlan_ScheduleOverridesNightMode(t *testing.T) {
	req := household()
	req.Now = time.Date(2024, 10, 1, 23, 30, 0, 0, time.UTC)
	req.Schedules = []Schedule{{Device: "Oven", At: req.Now.Add(20 * time.Second)}}

	res := Plan(req)
	assert.True(t, res.DeviceStatus["Oven"])
	assert.False(t, res.DeviceStatus["Lights"])
	assert.False(t, res.DeviceStatus["Appliances"])
}

func TestPlan_ScheduleForAnotherMinuteIsIgnored(t *testing.T) {
	req := household()
	req.CurrentPrice = 0.25
	req.Schedules = []Schedule{{Device: "Oven", At: noon.Add(time.Minute)}}

	assert.False(t, Plan(req).DeviceStatus["Oven"])
}

func TestPlan_NoSavingBelowThreshold(t *testing.T) {
	res := Plan(household())
	assert.False(t, res.EnergySavingMode)
	assert.True(t, res.DeviceStatus["Lights"])
	assert.True(t, res.DeviceStatus["Appliances"])
}

func TestPlan_DoesNotMutatePriorities(t *testing.T) {
	req := household()
	req.DevicePriorities = map[string]int{"Lights": 2}
	Plan(req)
	assert.Len(t, req.DevicePriorities, 1)
}

func TestValidate(t *testing.T) {
	req := household()
	require.NoError(t, Validate(&req))

	req.DesiredRange = [2]float64{25, 20}
	req.UsedToday = -1
	req.Schedules = []Schedule{{At: noon}}

	var verrs validation.ValidationErrors
	require.ErrorAs(t, Validate(&req), &verrs)

	var got []string
	for _, e := range verrs {
		got = append(got, e.Field)
	}
	assert.ElementsMatch(t, []string{"usedToday", "schedules[0].device", "desiredRange"}, got)
}
