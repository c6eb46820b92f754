package tcp

import (
	"log/slog"

	"github.com/soypat/tcpstack/internal"
)

// logger wraps an optional *slog.Logger with the package's log-level
// convenience methods. The zero value is a valid no-op logger.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(lvl slog.Level) bool {
	return internal.HeapAllocDebugging || internal.LogEnabled(l.log, lvl)
}

func (l logger) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, lvl, msg, attrs...)
}

func (l logger) debug(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelDebug, msg, attrs...)
}

func (l logger) trace(msg string, attrs ...slog.Attr) {
	l.logattrs(internal.LevelTrace, msg, attrs...)
}

func (l logger) info(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelInfo, msg, attrs...)
}

func (l logger) logerr(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelError, msg, attrs...)
}

func (c *Conn) traceSnd(msg string) {
	c.log.trace(msg,
		slog.String("state", c.state.String()),
		internal.SlogAddr4("raddr", &c.remoteAddr),
		slog.Uint64("snd.isn", uint64(c.isn)),
		slog.Uint64("snd.sent", uint64(c.sent)),
		slog.Uint64("snd.unacked", uint64(c.txUnacked)),
		slog.Uint64("snd.wnd", uint64(c.sndwnd)),
	)
}

func (c *Conn) traceRcv(msg string) {
	c.log.trace(msg,
		slog.String("state", c.state.String()),
		slog.Uint64("rcv.nxt", uint64(c.rcvseq)),
		slog.Uint64("rcv.wnd", uint64(c.rcvwnd)),
		slog.Bool("stopped", c.stopped),
	)
}

func (c *Conn) traceSeg(msg string, seg Segment) {
	if c.log.enabled(internal.LevelTrace) {
		c.log.trace(msg,
			slog.Uint64("seg.seq", uint64(seg.SEQ)),
			slog.Uint64("seg.ack", uint64(seg.ACK)),
			slog.Uint64("seg.wnd", uint64(seg.WND)),
			slog.String("seg.flags", seg.Flags.String()),
			slog.Uint64("seg.data", uint64(seg.DATALEN)),
		)
	}
}
