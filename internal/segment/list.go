package segment

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// ListEntry is one row of ffmpeg's CSV segment list:
// filename,start_time,end_time. The muxer appends a row only after the
// segment file is fully written, which is what gives segments atomic
// visibility.
type ListEntry struct {
	Filename string
	Start    time.Duration
	End      time.Duration
}

// ReadList parses the segment list at path. A missing file yields an empty
// list: the muxer has simply not completed a segment yet. A trailing
// partial line (no newline) is ignored until the muxer finishes it.
func ReadList(path string) ([]ListEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return parseList(string(data)), nil
}

func parseList(data string) []ListEntry {
	var entries []ListEntry
	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(data[:idx])
		data = data[idx+1:]
		if line == "" {
			continue
		}
		entry, ok := parseListLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func parseListLine(line string) (ListEntry, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return ListEntry{}, false
	}
	name := strings.Trim(strings.TrimSpace(fields[0]), "\"")
	if name == "" {
		return ListEntry{}, false
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return ListEntry{}, false
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return ListEntry{}, false
	}
	return ListEntry{
		Filename: name,
		Start:    time.Duration(start * float64(time.Second)),
		End:      time.Duration(end * float64(time.Second)),
	}, true
}
