package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/dispatch"
)

// parseHandshake parses the reply to "FS connect".
// Format: connect success:F-H,L-R,ZBL1,ZBL2 or connect success2222
func parseHandshake(reply string) (Info, error) {
	if reply == dispatch.ReplyConnectPlain {
		return Info{Plain: true}, nil
	}

	names, ok := strings.CutPrefix(reply, dispatch.ReplyConnect)
	if !ok {
		return Info{}, &ReplyError{Command: dispatch.PrefixConnect, Reply: reply}
	}

	info := Info{}
	for _, name := range strings.Split(names, ",") {
		if name = strings.TrimSpace(name); name != "" {
			info.Curves = append(info.Curves, name)
		}
	}
	return info, nil
}

// parsePoints parses a curve reply.
// Format: Controller send points:0.00,0.00,25.00,...
func parsePoints(reply string) (curve.Points, error) {
	values, ok := strings.CutPrefix(reply, dispatch.ReplyPoints)
	if !ok {
		return curve.Points{}, fmt.Errorf("invalid points reply: %q", reply)
	}

	parts := strings.Split(values, ",")
	if len(parts) != curve.NumPoints {
		return curve.Points{}, fmt.Errorf("invalid points reply: expected %d values, got %d", curve.NumPoints, len(parts))
	}

	var points curve.Points
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return curve.Points{}, fmt.Errorf("invalid point %d: %w", i, err)
		}
		points[i] = float32(v)
	}
	return points, nil
}

// parseChannels parses an ADC snapshot reply.
// Format: CH0: 1304 | CH1: 0 | CH2: 1319 | CH3: 100 | CH4: 4095
func parseChannels(reply string) (adc.Snapshot, error) {
	parts := strings.Split(strings.TrimSpace(reply), "|")
	if len(parts) != adc.Channels {
		return adc.Snapshot{}, fmt.Errorf("invalid channels reply: expected %d channels, got %d", adc.Channels, len(parts))
	}

	var snap adc.Snapshot
	for i, part := range parts {
		label, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || label != fmt.Sprintf("CH%d", i) {
			return adc.Snapshot{}, fmt.Errorf("invalid channel %d: %q", i, part)
		}

		v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
		if err != nil {
			return adc.Snapshot{}, fmt.Errorf("invalid channel %d: %w", i, err)
		}
		if v > adc.MaxValue {
			return adc.Snapshot{}, fmt.Errorf("channel %d out of range: %d (max %d)", i, v, adc.MaxValue)
		}
		snap[i] = uint16(v)
	}
	return snap, nil
}
