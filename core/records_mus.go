package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records persisted in badger. Fields are written in
// declaration order; timestamps are Unix microseconds and decode as UTC.
var (
	IDMUS               = idMUS{}
	RoleMUS             = roleMUS{}
	PayloadMUS          = payloadMUS{}
	CitationMUS         = citationMUS{}
	ToolInvocationMUS   = toolInvocationMUS{}
	ConversationTurnMUS = conversationTurnMUS{}
	PageFailureMUS      = pageFailureMUS{}
	RunReportMUS        = runReportMUS{}

	VectorMUS          = ord.NewSliceSer[float32](raw.Float32)
	citationsMUS       = ord.NewSliceSer[Citation](CitationMUS)
	toolInvocationsMUS = ord.NewSliceSer[ToolInvocation](ToolInvocationMUS)
	pageFailuresMUS    = ord.NewSliceSer[PageFailure](PageFailureMUS)
)

var (
	_ mus.Serializer[ID]               = IDMUS
	_ mus.Serializer[ConversationTurn] = ConversationTurnMUS
	_ mus.Serializer[RunReport]        = RunReportMUS
)

// fields chains the decode steps of one struct, stopping at the first error.
type fields struct {
	bs  []byte
	n   int
	err error
}

func (f *fields) skip(skip func([]byte) (int, error)) {
	if f.err != nil {
		return
	}
	var n int
	n, f.err = skip(f.bs[f.n:])
	f.n += n
}

func decode[T any](f *fields, ser mus.Serializer[T], dst *T) {
	if f.err != nil {
		return
	}
	var n int
	*dst, n, f.err = ser.Unmarshal(f.bs[f.n:])
	f.n += n
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

func (idMUS) Skip(bs []byte) (int, error) { return varint.Uint64.Skip(bs) }

type roleMUS struct{}

func (roleMUS) Marshal(v Role, bs []byte) int { return ord.String.Marshal(string(v), bs) }

func (roleMUS) Unmarshal(bs []byte) (Role, int, error) {
	v, n, err := ord.String.Unmarshal(bs)
	return Role(v), n, err
}

func (roleMUS) Size(v Role) int { return ord.String.Size(string(v)) }

func (roleMUS) Skip(bs []byte) (int, error) { return ord.String.Skip(bs) }

type durationMUS struct{}

func (durationMUS) Marshal(v time.Duration, bs []byte) int { return varint.Int64.Marshal(int64(v), bs) }

func (durationMUS) Unmarshal(bs []byte) (time.Duration, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	return time.Duration(v), n, err
}

func (durationMUS) Size(v time.Duration) int { return varint.Int64.Size(int64(v)) }

func (durationMUS) Skip(bs []byte) (int, error) { return varint.Int64.Skip(bs) }

type payloadMUS struct{}

func (payloadMUS) Marshal(v Payload, bs []byte) (n int) {
	n = ord.String.Marshal(v.URL, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Heading, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Int.Marshal(v.TokenCount, bs[n:])
	return n + varint.Int.Marshal(v.Ordinal, bs[n:])
}

func (payloadMUS) Unmarshal(bs []byte) (v Payload, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.URL)
	decode(f, ord.String, &v.Title)
	decode(f, ord.String, &v.Heading)
	decode(f, ord.String, &v.Text)
	decode(f, varint.Int, &v.TokenCount)
	decode(f, varint.Int, &v.Ordinal)
	return v, f.n, f.err
}

func (payloadMUS) Size(v Payload) int {
	return ord.String.Size(v.URL) +
		ord.String.Size(v.Title) +
		ord.String.Size(v.Heading) +
		ord.String.Size(v.Text) +
		varint.Int.Size(v.TokenCount) +
		varint.Int.Size(v.Ordinal)
}

func (payloadMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	for range 4 {
		f.skip(ord.String.Skip)
	}
	f.skip(varint.Int.Skip)
	f.skip(varint.Int.Skip)
	return f.n, f.err
}

type citationMUS struct{}

func (citationMUS) Marshal(v Citation, bs []byte) (n int) {
	n = ord.String.Marshal(v.Title, bs)
	return n + ord.String.Marshal(v.URL, bs[n:])
}

func (citationMUS) Unmarshal(bs []byte) (v Citation, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.Title)
	decode(f, ord.String, &v.URL)
	return v, f.n, f.err
}

func (citationMUS) Size(v Citation) int {
	return ord.String.Size(v.Title) + ord.String.Size(v.URL)
}

func (citationMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	f.skip(ord.String.Skip)
	f.skip(ord.String.Skip)
	return f.n, f.err
}

type toolInvocationMUS struct{}

func (toolInvocationMUS) Marshal(v ToolInvocation, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Arguments, bs[n:])
	return n + ord.String.Marshal(v.Result, bs[n:])
}

func (toolInvocationMUS) Unmarshal(bs []byte) (v ToolInvocation, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.ID)
	decode(f, ord.String, &v.Name)
	decode(f, ord.String, &v.Arguments)
	decode(f, ord.String, &v.Result)
	return v, f.n, f.err
}

func (toolInvocationMUS) Size(v ToolInvocation) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Name) +
		ord.String.Size(v.Arguments) +
		ord.String.Size(v.Result)
}

func (toolInvocationMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	for range 4 {
		f.skip(ord.String.Skip)
	}
	return f.n, f.err
}

type conversationTurnMUS struct{}

func (conversationTurnMUS) Marshal(v ConversationTurn, bs []byte) (n int) {
	n = ord.String.Marshal(v.SessionID, bs)
	n += varint.Uint64.Marshal(v.Seq, bs[n:])
	n += RoleMUS.Marshal(v.Role, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += toolInvocationsMUS.Marshal(v.ToolInvocations, bs[n:])
	n += citationsMUS.Marshal(v.Citations, bs[n:])
	return n + raw.TimeUnixMicroUTC.Marshal(v.Timestamp, bs[n:])
}

func (conversationTurnMUS) Unmarshal(bs []byte) (v ConversationTurn, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.SessionID)
	decode(f, varint.Uint64, &v.Seq)
	decode(f, RoleMUS, &v.Role)
	decode(f, ord.String, &v.Content)
	decode(f, toolInvocationsMUS, &v.ToolInvocations)
	decode(f, citationsMUS, &v.Citations)
	decode(f, raw.TimeUnixMicroUTC, &v.Timestamp)
	if len(v.ToolInvocations) == 0 {
		v.ToolInvocations = nil
	}
	if len(v.Citations) == 0 {
		v.Citations = nil
	}
	return v, f.n, f.err
}

func (conversationTurnMUS) Size(v ConversationTurn) int {
	return ord.String.Size(v.SessionID) +
		varint.Uint64.Size(v.Seq) +
		RoleMUS.Size(v.Role) +
		ord.String.Size(v.Content) +
		toolInvocationsMUS.Size(v.ToolInvocations) +
		citationsMUS.Size(v.Citations) +
		raw.TimeUnixMicroUTC.Size(v.Timestamp)
}

func (conversationTurnMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	f.skip(ord.String.Skip)
	f.skip(varint.Uint64.Skip)
	f.skip(RoleMUS.Skip)
	f.skip(ord.String.Skip)
	f.skip(toolInvocationsMUS.Skip)
	f.skip(citationsMUS.Skip)
	f.skip(raw.TimeUnixMicroUTC.Skip)
	return f.n, f.err
}

type pageFailureMUS struct{}

func (pageFailureMUS) Marshal(v PageFailure, bs []byte) (n int) {
	n = ord.String.Marshal(v.URL, bs)
	n += ord.String.Marshal(v.Kind, bs[n:])
	return n + ord.String.Marshal(v.Message, bs[n:])
}

func (pageFailureMUS) Unmarshal(bs []byte) (v PageFailure, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.URL)
	decode(f, ord.String, &v.Kind)
	decode(f, ord.String, &v.Message)
	return v, f.n, f.err
}

func (pageFailureMUS) Size(v PageFailure) int {
	return ord.String.Size(v.URL) + ord.String.Size(v.Kind) + ord.String.Size(v.Message)
}

func (pageFailureMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	for range 3 {
		f.skip(ord.String.Skip)
	}
	return f.n, f.err
}

type runReportMUS struct{}

func (runReportMUS) Marshal(v RunReport, bs []byte) (n int) {
	n = ord.String.Marshal(v.Root, bs)
	n += varint.Int.Marshal(v.Discovered, bs[n:])
	n += varint.Int.Marshal(v.Processed, bs[n:])
	n += varint.Int.Marshal(v.Failed, bs[n:])
	n += pageFailuresMUS.Marshal(v.Failures, bs[n:])
	n += varint.Int.Marshal(v.Chunks, bs[n:])
	n += varint.Int.Marshal(v.Vectors, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.StartedAt, bs[n:])
	n += durationMUS{}.Marshal(v.Elapsed, bs[n:])
	return n + ord.String.Marshal(v.Aborted, bs[n:])
}

func (runReportMUS) Unmarshal(bs []byte) (v RunReport, n int, err error) {
	f := &fields{bs: bs}
	decode(f, ord.String, &v.Root)
	decode(f, varint.Int, &v.Discovered)
	decode(f, varint.Int, &v.Processed)
	decode(f, varint.Int, &v.Failed)
	decode(f, pageFailuresMUS, &v.Failures)
	decode(f, varint.Int, &v.Chunks)
	decode(f, varint.Int, &v.Vectors)
	decode(f, raw.TimeUnixMicroUTC, &v.StartedAt)
	decode(f, durationMUS{}, &v.Elapsed)
	decode(f, ord.String, &v.Aborted)
	if len(v.Failures) == 0 {
		v.Failures = nil
	}
	return v, f.n, f.err
}

func (runReportMUS) Size(v RunReport) int {
	return ord.String.Size(v.Root) +
		varint.Int.Size(v.Discovered) +
		varint.Int.Size(v.Processed) +
		varint.Int.Size(v.Failed) +
		pageFailuresMUS.Size(v.Failures) +
		varint.Int.Size(v.Chunks) +
		varint.Int.Size(v.Vectors) +
		raw.TimeUnixMicroUTC.Size(v.StartedAt) +
		durationMUS{}.Size(v.Elapsed) +
		ord.String.Size(v.Aborted)
}

func (runReportMUS) Skip(bs []byte) (int, error) {
	f := &fields{bs: bs}
	f.skip(ord.String.Skip)
	for range 3 {
		f.skip(varint.Int.Skip)
	}
	f.skip(pageFailuresMUS.Skip)
	f.skip(varint.Int.Skip)
	f.skip(varint.Int.Skip)
	f.skip(raw.TimeUnixMicroUTC.Skip)
	f.skip(durationMUS{}.Skip)
	f.skip(ord.String.Skip)
	return f.n, f.err
}
