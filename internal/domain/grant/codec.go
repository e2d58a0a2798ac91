package grant

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record layout: value,minutes,used,usedAtMillis joined by ';'.
const (
	recordSep = ";"
	fieldSep  = ","
)

// Encode serializes codes into the persisted record list.
func Encode(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		var usedAt int64
		if c.used && !c.usedAt.IsZero() {
			usedAt = c.usedAt.UnixMilli()
		}
		parts[i] = strings.Join([]string{
			c.value,
			strconv.Itoa(c.minutes),
			strconv.FormatBool(c.used),
			strconv.FormatInt(usedAt, 10),
		}, fieldSep)
	}
	return strings.Join(parts, recordSep)
}

// Decode parses a record list. Malformed records are skipped and reported in skipped.
func Decode(data string) (codes []Code, skipped []string) {
	if data == "" {
		return []Code{}, nil
	}
	records := strings.Split(data, recordSep)
	codes = make([]Code, 0, len(records))
	for _, rec := range records {
		c, err := decodeRecord(rec)
		if err != nil {
			skipped = append(skipped, rec)
			continue
		}
		codes = append(codes, c)
	}
	return codes, skipped
}

func decodeRecord(rec string) (Code, error) {
	f := strings.Split(rec, fieldSep)
	if len(f) != 4 {
		return Code{}, fmt.Errorf("want 4 fields, got %d", len(f))
	}
	minutes, err := strconv.Atoi(f[1])
	if err != nil {
		return Code{}, fmt.Errorf("minutes: %w", err)
	}
	used, err := strconv.ParseBool(f[2])
	if err != nil {
		return Code{}, fmt.Errorf("used: %w", err)
	}
	ms, err := strconv.ParseInt(f[3], 10, 64)
	if err != nil {
		return Code{}, fmt.Errorf("used_at: %w", err)
	}
	var usedAt time.Time
	if ms > 0 {
		usedAt = time.UnixMilli(ms)
	}
	if f[0] == "" || minutes < 0 {
		return Code{}, fmt.Errorf("invalid record %q", rec)
	}
	return Reconstruct(f[0], minutes, used, usedAt), nil
}
