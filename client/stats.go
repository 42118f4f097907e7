package main

import (
	"time"

	"github.com/wfunc/blockroom/network"
)

type summary struct {
	Count         int
	Min, Avg, Max time.Duration
}

// summarize reduces round-trip totals to min/avg/max.
func summarize(samples []network.Latency) summary {
	if len(samples) == 0 {
		return summary{}
	}
	s := summary{Count: len(samples), Min: samples[0].Total, Max: samples[0].Total}
	var sum time.Duration
	for _, l := range samples {
		sum += l.Total
		if l.Total < s.Min {
			s.Min = l.Total
		}
		if l.Total > s.Max {
			s.Max = l.Total
		}
	}
	s.Avg = sum / time.Duration(len(samples))
	return s
}
