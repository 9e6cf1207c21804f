// Package addonlib implements the installation engine of the addon
// manager: reconciling the filtered catalog against installed state,
// downloading addon archives resumably with bounded parallelism, and
// recording verified installs.
package addonlib

import (
	"strconv"
	"strings"
)

// Size unit constants for byte conversions.
const (
	B  int64 = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
)

const (
	// DefConcurrency is the default number of parallel download tasks.
	DefConcurrency = 5
	// DefChunkSize is the copy buffer size of a single write cycle.
	DefChunkSize = 32 * KB
	// DefUserAgent identifies the addon manager to the addon server.
	DefUserAgent = "STKAddonManager/1.0"

	// PartSuffix marks an in-progress download next to its target.
	// A leftover part file is the only durable resume signal.
	PartSuffix = ".part"

	// TmpDirName is the addon-root subdirectory holding downloaded
	// archives until they are extracted.
	TmpDirName = "tmp"
)

// ByteSize renders a byte count the way the plan and summary print it.
type ByteSize int64

func (s ByteSize) String() string {
	units := []struct {
		div int64
		fmt string
	}{
		{GB, "GB"},
		{MB, "MB"},
		{KB, "KB"},
	}
	v := int64(s)
	for _, u := range units {
		if v < u.div {
			continue
		}
		whole := v / u.div
		frac := (v % u.div) * 100 / u.div
		var b strings.Builder
		b.WriteString(strconv.FormatInt(whole, 10))
		if frac > 0 {
			b.WriteByte('.')
			if frac < 10 {
				b.WriteByte('0')
			}
			b.WriteString(strconv.FormatInt(frac, 10))
		}
		b.WriteString(" ")
		b.WriteString(u.fmt)
		return b.String()
	}
	return strconv.FormatInt(v, 10) + " B"
}
