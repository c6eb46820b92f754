package tcp

import "encoding/binary"

// OptionParser walks a raw TCP option buffer (as returned by [Frame.Options])
// one option at a time via [OptionParser.ForEachOption]. It special-cases
// END and NOOP (single-byte options) and MSS (the only option this core's
// state machine reacts to); every other defined or undefined option kind is
// skipped over using its declared length byte, exactly as a real option
// walker must to stay forward-compatible with options it does not
// understand.
type OptionParser struct {
	buf []byte
}

// NewOptionParser wraps buf (typically [Frame.Options]) for iteration.
func NewOptionParser(buf []byte) OptionParser { return OptionParser{buf: buf} }

// ForEachOption invokes fn once per option found in the buffer, except END
// and NOOP, which the walker consumes itself (END ends the walk). fn
// receives the option kind and its value bytes. Iteration stops
// early if fn returns a non-nil error, or if a length-prefixed option's
// declared length would read past the end of the buffer (a malformed
// packet), in which case a [*RejectError] is returned.
func (p OptionParser) ForEachOption(fn func(kind OptionKind, value []byte) error) error {
	buf := p.buf
	off := 0
	for off < len(buf) {
		kind := OptionKind(buf[off])
		switch kind {
		case OptEnd:
			return nil
		case OptNop:
			off++
			continue
		}
		if off+1 >= len(buf) {
			return newRejectErr(off, "truncated option length byte")
		}
		optlen := int(buf[off+1])
		if optlen < 2 || off+optlen > len(buf) {
			return newRejectErr(off, "invalid option length")
		}
		value := buf[off+2 : off+optlen]
		if err := fn(kind, value); err != nil {
			return err
		}
		off += optlen
	}
	return nil
}

// parseMSS extracts the peer-advertised MSS option from a SYN segment's
// option space, returning 0 if none is present or it is malformed.
func parseMSS(options []byte) Size {
	var mss Size
	p := NewOptionParser(options)
	p.ForEachOption(func(kind OptionKind, value []byte) error {
		if kind == OptMaxSegmentSize && len(value) == 2 {
			mss = Size(binary.BigEndian.Uint16(value))
		}
		return nil
	})
	return mss
}

// appendMSSOption appends an MSS option (kind=2,len=4,value=mss) to buf.
func appendMSSOption(buf []byte, mss uint16) []byte {
	buf = append(buf, byte(OptMaxSegmentSize), 4)
	return binary.BigEndian.AppendUint16(buf, mss)
}
