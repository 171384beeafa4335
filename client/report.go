package client

import (
	"fmt"
	"time"
)

// sizeString renders a byte count in the nearest human unit.
func sizeString(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%dB", size)
	case size < 1024*1024:
		return fmt.Sprintf("%dkB", size/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.2fMB", float64(size)/(1024*1024))
	}
	return fmt.Sprintf("%.2fGB", float64(size)/(1024*1024*1024))
}

func durationString(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.0fus", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}

func bandwidthString(size int64, elapsed time.Duration) string {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = float64(time.Microsecond) / float64(time.Second)
	}
	bps := float64(size) * 8 / secs
	if bps < 1000*1000 {
		return fmt.Sprintf("%.0fkb/s", bps/1000)
	}
	return fmt.Sprintf("%.2fMb/s", bps/(1000*1000))
}
