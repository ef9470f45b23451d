package scenes

import (
	"bufio"
	"bytes"
	"regexp"
	"sort"
	"strconv"
)

var ptsTimePattern = regexp.MustCompile(`pts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// parseShowinfoTimestamps extracts pts_time values from showinfo filter
// output, deduplicated and sorted ascending.
func parseShowinfoTimestamps(output []byte) []float64 {
	seen := make(map[float64]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.Contains(line, []byte("showinfo")) {
			continue
		}
		match := ptsTimePattern.FindSubmatch(line)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(string(match[1]), 64)
		if err != nil {
			continue
		}
		seen[value] = struct{}{}
	}

	timestamps := make([]float64, 0, len(seen))
	for ts := range seen {
		timestamps = append(timestamps, ts)
	}
	sort.Float64s(timestamps)
	return timestamps
}
