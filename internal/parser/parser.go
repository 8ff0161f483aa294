// Package parser classifies a decoded RADIUS Accounting-Request packet into
// a cache action by walking its attribute list once, consulting a Filter for
// opted-out usernames along the way.
package parser

import (
	"context"
	"time"

	"github.com/marmos91/radius-cacher/internal/action"
	"github.com/marmos91/radius-cacher/internal/filter"
	"github.com/marmos91/radius-cacher/internal/logger"
	"github.com/marmos91/radius-cacher/internal/metrics"
	"github.com/marmos91/radius-cacher/internal/radius"
)

// Parser owns the numeric filter consulted while classifying packets. It
// holds no other mutable state and is safe for concurrent use by any number
// of server workers, since the filter itself is the only shared state and
// is already safe for concurrent readers.
type Parser struct {
	filter *filter.Filter
}

// New constructs a Parser with a Filter loaded from path, blocking until the
// filter's initial load completes. Construction must finish before a server
// starts accepting packets (see internal/server), otherwise an early packet
// could bypass the filter. m may be nil if reload/size metrics aren't
// wanted.
func New(ctx context.Context, filterPath string, refreshInterval time.Duration, m *metrics.Metrics) *Parser {
	return &Parser{filter: filter.New(ctx, filterPath, refreshInterval, m)}
}

// NewWithFilter wires an already-constructed Filter; used by tests and by
// callers that need to customize the filter's Source (e.g. S3).
func NewWithFilter(f *filter.Filter) *Parser {
	return &Parser{filter: f}
}

// NewWithSource is New but with an explicit filter.Source, e.g. an
// S3-object fetcher instead of a local file open.
func NewWithSource(ctx context.Context, filterPath string, refreshInterval time.Duration, source filter.Source, m *metrics.Metrics) *Parser {
	return &Parser{filter: filter.NewWithSource(ctx, filterPath, refreshInterval, source, m)}
}

// FilterSize reports the current filter snapshot size, for metrics/health.
func (p *Parser) FilterSize() int {
	return p.filter.Len()
}

// Reload forces an out-of-band filter reload, bypassing the timer-based
// refresher. Used by the admin HTTP surface's /filter/reload endpoint.
func (p *Parser) Reload() {
	p.filter.Reload()
}

// Parse classifies one received datagram. slice must be bounded to exactly
// bytesReceived bytes (slice[:bytesReceived] from the caller's receive
// buffer); Parse never reads outside it.
func (p *Parser) Parse(bytesReceived int, slice []byte) action.Action {
	header, err := radius.DecodeHeader(slice)
	if err != nil {
		return action.Nothing
	}
	if header.Code != radius.CodeAccountingReq {
		return action.Nothing
	}
	if int(header.Length) < radius.HeaderSize || int(header.Length) > bytesReceived || header.Length > 4095 {
		return action.Nothing
	}

	packetEnd := header.Length
	cursor := uint16(radius.HeaderSize)

	var kind action.Kind = action.DoNothing
	var key, value string
	haveKind, haveKey, haveValue := false, false, false

	for cursor < packetEnd {
		attr, err := radius.DecodeAttribute(slice[cursor:])
		if err != nil {
			return action.Nothing
		}
		valueStart := cursor + radius.AttributeHeaderSize
		valueEnd := cursor + uint16(attr.Length)
		if valueEnd > packetEnd || valueEnd > uint16(bytesReceived) {
			return action.Nothing
		}
		valueSlice := slice[valueStart:valueEnd]

		switch attr.Type {
		case radius.AttrAcctStatusType:
			v, err := radius.DecodeUint32(valueSlice)
			if err != nil {
				return action.Nothing
			}
			switch radius.AcctStatusType(v) {
			case radius.AcctStatusStart, radius.AcctStatusUpdate:
				kind = action.Store
			case radius.AcctStatusStop:
				kind = action.Remove
			default:
				return action.Nothing
			}
			haveKind = true

		case radius.AttrFramedIPAddress:
			addr, err := radius.DecodeAddress(valueSlice)
			if err != nil {
				return action.Nothing
			}
			key = addr
			haveKey = true

		case radius.AttrUserName:
			name, err := radius.DecodeString(valueSlice)
			if err != nil {
				return action.Nothing
			}
			value = name
			haveValue = true

			if id, ok := parseUint64(name); ok && p.filter.Contains(id) {
				logger.Info("parser: username matched filter", logger.CacheVal(name))
				return action.Action{Kind: action.Filter, Key: key, Value: name}
			}
		}

		if haveKind && haveKey && haveValue {
			break
		}
		cursor = valueEnd
	}

	if !haveKind || !haveKey || !haveValue {
		return action.Nothing
	}
	return action.Action{Kind: kind, Key: key, Value: value}
}

// parseUint64 mirrors stoull-style leading-digit parsing: it parses the
// leading run of ASCII digits and ignores anything after. A username with
// no leading digits is simply not numeric and is never filter-suppressed.
func parseUint64(s string) (uint64, bool) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start := i
	var v uint64
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		v = v*10 + uint64(s[i]-'0')
		i++
	}
	if i == start {
		return 0, false
	}
	return v, true
}
