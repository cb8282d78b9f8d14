package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickypin/capmaster/internal/report"
)

func TestIcmpPostProcessDecodesErrorsAndInfo(t *testing.T) {
	raw := strings.Join([]string{
		// Port Unreachable carrying an embedded UDP flow.
		"3,3,17,10.0.0.1,,5353,10.0.0.2,,5353",
		"3,3,17,10.0.0.1,,5353,10.0.0.2,,5353",
		// Echo Request / Reply are informational.
		"8,0,,10.0.0.5,,,10.0.0.6,,,",
		"0,0,,10.0.0.6,,,10.0.0.5,,,",
	}, "\n")

	out, err := icmpStatsModule{}.PostProcess(raw, report.FormatTxt)
	require.NoError(t, err)

	assert.Contains(t, out, "ICMP error messages with embedded protocol info:")
	assert.Contains(t, out, "[3/3] Port Unreachable")
	assert.Contains(t, out, "UDP")
	assert.Contains(t, out, "10.0.0.1:5353 -> 10.0.0.2:5353")
	assert.Contains(t, out, "2")

	assert.Contains(t, out, "ICMP informational messages:")
	assert.Contains(t, out, "[8/0] Echo Request")
	assert.Contains(t, out, "[0/0] Echo Reply")
}

func TestIcmpPostProcessUnknownType(t *testing.T) {
	out, err := icmpStatsModule{}.PostProcess("42,7,,1.1.1.1,,,2.2.2.2,,,", report.FormatTxt)
	require.NoError(t, err)
	assert.Contains(t, out, "[42/7] Type 42 Code 7")
}

func TestIcmpPostProcessSkipsMalformedLines(t *testing.T) {
	out, err := icmpStatsModule{}.PostProcess("too,few,fields\n\n", report.FormatTxt)
	require.NoError(t, err)
	assert.Empty(t, out)
}
