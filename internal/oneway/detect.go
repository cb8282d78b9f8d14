package oneway

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rickypin/capmaster/internal/toolinvoke"
	"github.com/rickypin/capmaster/printer"
	"github.com/rickypin/capmaster/util"
)

var packetFields = []string{
	"tcp.stream",
	"ip.src",
	"tcp.srcport",
	"ip.dst",
	"tcp.dstport",
	"tcp.ack",
	"tcp.len",
}

// DetectStreams runs a field-extraction tool over a capture's TCP packets and
// returns the stream IDs the Detector judges one-way.
func DetectStreams(ctx context.Context, inv *toolinvoke.Invoker, timeout time.Duration, path string, ackThreshold int) ([]int, error) {
	args := []string{"-r", path, "-T", "fields", "-E", "separator=\t"}
	for _, f := range packetFields {
		args = append(args, "-e", f)
	}
	args = append(args, "-Y", "tcp")

	printer.Debugf("running field extraction for one-way detection on %s\n", path)

	res, err := inv.Invoke(ctx, "tshark", args, "", timeout)
	if err != nil {
		return nil, util.NewToolExecutionError("tshark", 0, err.Error())
	}

	detector := NewDetector(ackThreshold)
	if err := detector.Feed(strings.NewReader(res.Stdout)); err != nil {
		return nil, err
	}

	analyses := detector.Analyze()
	ids := make([]int, 0, len(analyses))
	for _, a := range analyses {
		printer.Debugf("one-way stream %d: %s, ack delta=%d\n", a.StreamID, a.Active, a.AckDelta)
		ids = append(ids, a.StreamID)
	}
	return ids, nil
}

// FilterExcluding writes a copy of input at output with the given TCP stream
// IDs removed. With no streams to exclude, the input is copied unchanged.
func FilterExcluding(ctx context.Context, inv *toolinvoke.Invoker, timeout time.Duration, input, output string, excludeStreams []int) error {
	if len(excludeStreams) == 0 {
		printer.Debugf("no one-way streams for %s; copying file\n", input)
		return copyFile(input, output)
	}

	filters := make([]string, 0, len(excludeStreams))
	for _, id := range excludeStreams {
		filters = append(filters, "tcp.stream != "+strconv.Itoa(id))
	}
	displayFilter := strings.Join(filters, " and ")

	args := []string{"-r", input, "-Y", displayFilter, "-w", output}

	printer.Debugf("filtering %s -> %s with display filter: %s\n", input, output, displayFilter)

	if _, err := inv.Invoke(ctx, "tshark", args, "", timeout); err != nil {
		return util.NewToolExecutionError("tshark", 0, err.Error())
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
