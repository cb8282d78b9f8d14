// Package capture implements the capture metadata service: time range and
// packet count, backed primarily by a capinfos-like tool with a tshark-like
// field-extraction fallback, plus the capture-container helpers used by the
// preprocess pipeline.
package capture

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

// TimeRange is (first_ts, last_ts) as seconds since the Unix epoch.
type TimeRange struct {
	FirstTS float64
	LastTS  float64
}

// Empty reports whether the range has no span, as produced for an
// empty capture (first_ts == last_ts).
func (r TimeRange) Empty() bool {
	return r.FirstTS == r.LastTS
}

// Service reads capture metadata through the configured tools and caches
// results for the lifetime of one run: each file is read at most once per
// run regardless of how many callers ask for its metadata.
type Service struct {
	Invoker *toolinvoke.Invoker
	Timeout time.Duration

	rangeCache map[string]TimeRange
	countCache map[string]int
}

// NewService returns a Service with its caches initialized.
func NewService(inv *toolinvoke.Invoker, timeout time.Duration) *Service {
	return &Service{
		Invoker:    inv,
		Timeout:    timeout,
		rangeCache: make(map[string]TimeRange),
		countCache: make(map[string]int),
	}
}

// TimeRange implements a capinfos-primary / tshark-fallback strategy. The
// fallback is only attempted when the primary raises a typed
// CaptureMetadata error.
func (s *Service) TimeRange(ctx context.Context, path string) (TimeRange, error) {
	if tr, ok := s.rangeCache[path]; ok {
		return tr, nil
	}

	tr, err := s.timeRangeViaCapinfos(ctx, path)
	if err != nil {
		printer.Debugf("capinfos time range failed for %s (%v); falling back to field extraction\n", path, err)
		tr, err = s.timeRangeViaTshark(ctx, path)
		if err != nil {
			return TimeRange{}, err
		}
	}

	s.rangeCache[path] = tr
	return tr, nil
}

// PacketCount reads the packet count line from the metadata tool, handling
// SI-suffixed counts like "156 k" or "2 M".
func (s *Service) PacketCount(ctx context.Context, path string) (int, error) {
	if c, ok := s.countCache[path]; ok {
		return c, nil
	}

	res, err := s.Invoker.Invoke(ctx, "capinfos", []string{"-c", path}, "", s.Timeout)
	if err != nil {
		return 0, util.NewCaptureMetadataError(path, err)
	}

	count, err := parseCapinfosCount(res.Stdout)
	if err != nil {
		return 0, util.NewCaptureMetadataError(path, err)
	}

	s.countCache[path] = count
	return count, nil
}

func (s *Service) timeRangeViaCapinfos(ctx context.Context, path string) (TimeRange, error) {
	res, err := s.Invoker.Invoke(ctx, "capinfos", []string{"-T", "-m", "-Q", "-r", "-S", path}, "", s.Timeout)
	if err != nil {
		return TimeRange{}, util.NewCaptureMetadataError(path, err)
	}
	tr, err := parseCapinfosTimeRange(res.Stdout)
	if err != nil {
		return TimeRange{}, util.NewCaptureMetadataError(path, err)
	}
	return tr, nil
}

// timeRangeViaTshark extracts per-frame epoch timestamps and reduces them to
// a min/max fallback path.
func (s *Service) timeRangeViaTshark(ctx context.Context, path string) (TimeRange, error) {
	args := []string{
		"-r", path,
		"-T", "fields",
		"-E", "separator=,",
		"-e", "frame.time_epoch",
	}
	res, err := s.Invoker.Invoke(ctx, "tshark", args, "", s.Timeout)
	if err != nil {
		return TimeRange{}, util.NewCaptureMetadataError(path, err)
	}

	var first, last float64
	seen := false
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		if !seen || ts < first {
			first = ts
		}
		if !seen || ts > last {
			last = ts
		}
		seen = true
	}

	if !seen {
		// Empty capture: first_ts == last_ts == 0, no error.
		return TimeRange{}, nil
	}
	return TimeRange{FirstTS: first, LastTS: last}, nil
}

// parseCapinfosTimeRange parses the comma-separated "key,value" lines produced by
// `capinfos -T -m -Q -r -S`, pulling the first/last packet epoch fields.
func parseCapinfosTimeRange(output string) (TimeRange, error) {
	var first, last float64
	var haveFirst, haveLast bool

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ",", 2)
		if len(fields) != 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		value := strings.TrimSpace(fields[1])

		switch key {
		case "Start time (seconds since epoch)", "First packet time (seconds since epoch)":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				first, haveFirst = v, true
			}
		case "End time (seconds since epoch)", "Last packet time (seconds since epoch)":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				last, haveLast = v, true
			}
		}
	}

	if !haveFirst && !haveLast {
		// Empty capture: no packet timestamps reported.
		return TimeRange{}, nil
	}
	if !haveFirst || !haveLast {
		return TimeRange{}, errors.New("incomplete capinfos time range output")
	}

	return TimeRange{FirstTS: first, LastTS: last}, nil
}

// parseCapinfosCount parses the "N" or "N k"/"N M"/"N G" count line from
// `capinfos -c`.
func parseCapinfosCount(output string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ",", 2)
		if len(fields) != 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		if key != "Number of packets" {
			continue
		}
		return parseSICount(strings.TrimSpace(fields[1]))
	}
	return 0, errors.New("no packet count line found in capinfos output")
}

// parseSICount parses forms like "156 k", "2 M", "1.5 G", or a bare integer,
// as emitted by capinfos' human-readable packet count.
func parseSICount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty count")
	}

	parts := strings.Fields(s)
	numPart := parts[0]
	suffix := ""
	if len(parts) > 1 {
		suffix = parts[1]
	} else {
		// Forms like "156k" with no space.
		i := len(numPart)
		for i > 0 && !isDigitOrDot(numPart[i-1]) {
			i--
		}
		suffix = numPart[i:]
		numPart = numPart[:i]
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid count %q", s)
	}

	multiplier := 1.0
	switch suffix {
	case "":
		multiplier = 1
	case "k", "K":
		multiplier = 1_000
	case "M":
		multiplier = 1_000_000
	case "G":
		multiplier = 1_000_000_000
	default:
		return 0, errors.Errorf("unknown SI suffix %q in count %q", suffix, s)
	}

	return int(value * multiplier), nil
}

func isDigitOrDot(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.'
}
