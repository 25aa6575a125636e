// Package aggregate turns a raw reading history into per-day summaries for charting.
package aggregate

import (
	"sort"
	"time"

	"github.com/kostiamol/farmms/model"
)

type bucket struct {
	count       int
	temperature float64
	humidity    float64
	soil        float64
	light       float64
	solar       float64
}

// Daily groups finite readings by UTC calendar day and averages every sensor value within a day.
// Readings with any non-finite value are dropped before grouping. The result is ordered by date
// ascending and depends only on the multiset of readings, not on their order.
func Daily(readings []model.Reading) []model.DaySummary {
	finite := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Finite() {
			finite = append(finite, r)
		}
	}
	// a canonical summation order keeps the averages bit-identical for any arrival order
	sort.Slice(finite, func(i, j int) bool { return less(finite[i], finite[j]) })

	buckets := make(map[time.Time]*bucket)
	for _, r := range finite {
		day := truncateDay(r.Time)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		b.temperature += r.Temperature
		b.humidity += r.Humidity
		b.soil += r.SoilMoisture
		b.light += r.LightSensorValue
		b.solar += r.SolarSensorValue
	}

	days := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	summaries := make([]model.DaySummary, 0, len(days))
	for _, d := range days {
		b := buckets[d]
		n := float64(b.count)
		summaries = append(summaries, model.DaySummary{
			Date:            d,
			AvgTemperature:  b.temperature / n,
			AvgHumidity:     b.humidity / n,
			AvgSoilMoisture: b.soil / n,
			AvgLight:        b.light / n,
			AvgSolar:        b.solar / n,
		})
	}
	return summaries
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func less(a, b model.Reading) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	av := [...]float64{a.Temperature, a.Humidity, a.SoilMoisture, a.LightSensorValue, a.SolarSensorValue}
	bv := [...]float64{b.Temperature, b.Humidity, b.SoilMoisture, b.LightSensorValue, b.SolarSensorValue}
	for i := range av {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}
