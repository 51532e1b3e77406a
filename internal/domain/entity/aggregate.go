package entity

import (
	"fmt"
	"sort"
	"time"
)

// AggregateCandles rolls bars up into a coarser resolution.
//
// All input bars must belong to the same market, and resolution (the target
// bar length in minutes) must be a positive multiple of that market's
// resolution. Buckets align to epoch multiples of the target length. A
// bucket is emitted when at least one input bar falls into it, so gaps in
// the input stay gaps in the output.
func AggregateCandles(candles []*Candle, resolution int) ([]*Candle, error) {
	if len(candles) == 0 {
		return nil, nil
	}

	market := candles[0].Market
	if market.Resolution <= 0 {
		return nil, &ValidationError{Field: "resolution", Message: "tick data cannot be aggregated"}
	}
	if resolution <= 0 || resolution%market.Resolution != 0 {
		return nil, &ValidationError{Field: "resolution", Message: fmt.Sprintf(
			"target resolution %dm is not a positive multiple of %dm", resolution, market.Resolution)}
	}

	target := market
	target.Resolution = resolution
	step := int64(resolution) * 60

	buckets := make(map[int64]*Candle)
	firstSeen := make(map[int64]time.Time)
	lastSeen := make(map[int64]time.Time)

	for _, candle := range candles {
		if candle.Market != market {
			return nil, &ValidationError{Field: "market", Message: fmt.Sprintf(
				"bar of %s mixed into %s", candle.Market, market)}
		}

		epoch := candle.OpenTime.Unix()
		key := epoch - epoch%step

		bar, ok := buckets[key]
		if !ok {
			buckets[key] = &Candle{
				Market:   target,
				OpenTime: time.Unix(key, 0).UTC(),
				Open:     candle.Open,
				High:     candle.High,
				Low:      candle.Low,
				Close:    candle.Close,
				Volume:   candle.Volume,
			}
			firstSeen[key] = candle.OpenTime
			lastSeen[key] = candle.OpenTime
			continue
		}

		if candle.OpenTime.Before(firstSeen[key]) {
			bar.Open = candle.Open
			firstSeen[key] = candle.OpenTime
		}
		if candle.OpenTime.After(lastSeen[key]) {
			bar.Close = candle.Close
			lastSeen[key] = candle.OpenTime
		}
		if candle.High.Cmp(bar.High) > 0 {
			bar.High = candle.High
		}
		if candle.Low.Cmp(bar.Low) < 0 {
			bar.Low = candle.Low
		}
		bar.Volume = bar.Volume.Add(candle.Volume)
	}

	keys := make([]int64, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]*Candle, 0, len(keys))
	for _, key := range keys {
		out = append(out, buckets[key])
	}
	return out, nil
}
