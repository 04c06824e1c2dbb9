// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docrag/core"
	"github.com/vmihailenco/msgpack/v5"
)

// StoredEntry is the persisted form of an index entry.
// Seq records first insertion and orders ties.
type StoredEntry struct {
	ID      core.ID
	Seq     uint64
	Vector  []float32
	Payload core.Payload
}

// Entry converts back to the domain record.
func (s *StoredEntry) Entry() *core.IndexEntry {
	return &core.IndexEntry{ID: s.ID, Vector: s.Vector, Payload: s.Payload}
}

// MarshalStoredEntry serializes a StoredEntry to bytes.
func MarshalStoredEntry(entry *StoredEntry) []byte {
	size := core.IDMUS.Size(entry.ID) +
		varint.Uint64.Size(entry.Seq) +
		core.VectorMUS.Size(entry.Vector) +
		core.PayloadMUS.Size(entry.Payload)
	buf := make([]byte, size)
	n := core.IDMUS.Marshal(entry.ID, buf)
	n += varint.Uint64.Marshal(entry.Seq, buf[n:])
	n += core.VectorMUS.Marshal(entry.Vector, buf[n:])
	core.PayloadMUS.Marshal(entry.Payload, buf[n:])
	return buf
}

// UnmarshalStoredEntry deserializes a StoredEntry from bytes.
func UnmarshalStoredEntry(data []byte) (*StoredEntry, error) {
	var (
		entry StoredEntry
		n, m  int
		err   error
	)
	if entry.ID, n, err = core.IDMUS.Unmarshal(data); err != nil {
		return nil, corrupt(err)
	}
	if entry.Seq, m, err = varint.Uint64.Unmarshal(data[n:]); err != nil {
		return nil, corrupt(err)
	}
	n += m
	if entry.Vector, m, err = core.VectorMUS.Unmarshal(data[n:]); err != nil {
		return nil, corrupt(err)
	}
	n += m
	if entry.Payload, _, err = core.PayloadMUS.Unmarshal(data[n:]); err != nil {
		return nil, corrupt(err)
	}
	return &entry, nil
}

// MarshalTurn serializes a ConversationTurn to bytes.
func MarshalTurn(turn *core.ConversationTurn) []byte {
	buf := make([]byte, core.ConversationTurnMUS.Size(*turn))
	core.ConversationTurnMUS.Marshal(*turn, buf)
	return buf
}

// UnmarshalTurn deserializes a ConversationTurn from bytes.
func UnmarshalTurn(data []byte) (*core.ConversationTurn, error) {
	turn, _, err := core.ConversationTurnMUS.Unmarshal(data)
	if err != nil {
		return nil, corrupt(err)
	}
	return &turn, nil
}

// MarshalRunReport serializes a RunReport to bytes.
func MarshalRunReport(report *core.RunReport) []byte {
	buf := make([]byte, core.RunReportMUS.Size(*report))
	core.RunReportMUS.Marshal(*report, buf)
	return buf
}

// UnmarshalRunReport deserializes a RunReport from bytes.
func UnmarshalRunReport(data []byte) (*core.RunReport, error) {
	report, _, err := core.RunReportMUS.Unmarshal(data)
	if err != nil {
		return nil, corrupt(err)
	}
	return &report, nil
}

// MarshalToolInvocations serializes the tool invocations of a turn.
func MarshalToolInvocations(invocations []core.ToolInvocation) ([]byte, error) {
	return marshal(invocations)
}

// UnmarshalToolInvocations deserializes tool invocations. Empty input yields nil.
func UnmarshalToolInvocations(data []byte) ([]core.ToolInvocation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []core.ToolInvocation
	if err := unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalCitations serializes the citations of a turn.
func MarshalCitations(citations []core.Citation) ([]byte, error) {
	return marshal(citations)
}

// UnmarshalCitations deserializes citations. Empty input yields nil.
func UnmarshalCitations(data []byte) ([]core.Citation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []core.Citation
	if err := unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
}

func unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return nil
}
