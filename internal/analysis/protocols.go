package analysis

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/util"
)

// DetectProtocols runs the protocol-hierarchy query once for a capture and
// extracts the lowercased protocol tokens. The hierarchy output indents each
// protocol under its parent, with "frames:" and "bytes:" columns following
// the name.
func DetectProtocols(ctx context.Context, inv *toolinvoke.Invoker, timeout time.Duration, capturePath string) (map[string]bool, error) {
	res, err := inv.Invoke(ctx, "tshark", []string{"-r", capturePath, "-q", "-z", "io,phs"}, "", timeout)
	if err != nil {
		return nil, err
	}

	detected := ParseProtocolHierarchy(res.Stdout)
	if len(detected) == 0 {
		return nil, util.NewNoProtocolsDetectedError(capturePath)
	}
	return detected, nil
}

// ParseProtocolHierarchy extracts protocol tokens from `-z io,phs` output.
func ParseProtocolHierarchy(output string) map[string]bool {
	detected := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "=") ||
			strings.HasPrefix(trimmed, "Protocol Hierarchy") ||
			strings.HasPrefix(trimmed, "Filter:") {
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 || !strings.HasPrefix(fields[1], "frames:") {
			continue
		}

		token := strings.ToLower(fields[0])
		// "eth:ethertype:ip:tcp" style tokens appear in some outputs; index
		// every component so protocol gating sees them all.
		for _, part := range strings.Split(token, ":") {
			if part != "" {
				detected[part] = true
			}
		}
	}

	return detected
}
