package ftl

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stefanklug/SPIFlash/internal/ftllog"
)

// DebugDump renders both mapping tables as a multi-line string, the Go
// equivalent of FlashWearLevelerBase::printCaches. It is meant for use
// in tests and ad-hoc debugging, not for parsing.
func (e *Engine) DebugDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "blockMap (virtual -> physical), %d entries:\n", e.m.size())
	for v := 0; v < e.m.size(); v++ {
		h := e.m.blockOf(uint16(v))
		fmt.Fprintf(&b, "  v=%-5d -> p=%-5d live=%-5v free=%v\n", v, h.BlockID(), h.Live(), h.IsFree())
	}
	fmt.Fprintf(&b, "headerCache (physical -> virtual), %d entries:\n", e.m.size())
	for p := 0; p < e.m.size(); p++ {
		h := e.m.physicalHeader(uint16(p))
		fmt.Fprintf(&b, "  p=%-5d -> v=%-5d live=%-5v free=%v\n", p, h.BlockID(), h.Live(), h.IsFree())
	}
	return b.String()
}

// LogDebugDump writes DebugDump's output to the package logger at debug
// level, so callers can wire it behind a flag without paying the
// formatting cost when disabled.
func (e *Engine) LogDebugDump() {
	if !ftllog.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	ftllog.Debugf("%s", e.DebugDump())
}
