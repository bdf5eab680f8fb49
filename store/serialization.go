// Copyright 2025 Murmur Systems
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


package store

import (
	"github.com/murmurhq/murmur/core"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the storage wire format. Hand-written against the
// mus-go primitives; field order is part of the on-disk format and must not
// change without a migration.

var float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)

// IDMUS serializes core.ID values.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(id core.ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (core.ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return core.ID(v), n, err
}

func (idMUS) Size(id core.ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

// UtteranceMUS serializes core.Utterance values.
var UtteranceMUS = utteranceMUS{}

type utteranceMUS struct{}

func (utteranceMUS) Marshal(u core.Utterance, bs []byte) (n int) {
	n = ord.String.Marshal(u.SessionID, bs)
	n += ord.String.Marshal(u.SpeakerID, bs[n:])
	n += ord.String.Marshal(u.SpeakerName, bs[n:])
	n += ord.String.Marshal(u.Text, bs[n:])
	n += raw.Float64.Marshal(u.StartTS, bs[n:])
	n += raw.Float64.Marshal(u.EndTS, bs[n:])
	n += ord.String.Marshal(u.Source, bs[n:])
	n += float32SliceMUS.Marshal(u.Vector, bs[n:])
	return n
}

func (utteranceMUS) Unmarshal(bs []byte) (u core.Utterance, n int, err error) {
	var n1 int
	if u.SessionID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if u.SpeakerID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.SpeakerName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.StartTS, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.EndTS, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if u.Vector, n1, err = float32SliceMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (utteranceMUS) Size(u core.Utterance) (size int) {
	size = ord.String.Size(u.SessionID)
	size += ord.String.Size(u.SpeakerID)
	size += ord.String.Size(u.SpeakerName)
	size += ord.String.Size(u.Text)
	size += raw.Float64.Size(u.StartTS)
	size += raw.Float64.Size(u.EndTS)
	size += ord.String.Size(u.Source)
	size += float32SliceMUS.Size(u.Vector)
	return size
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, IDMUS.Size(id))
	IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := IDMUS.Unmarshal(data)
	return id, err
}

// MarshalUtterance serializes an Utterance to bytes.
func MarshalUtterance(u *core.Utterance) []byte {
	buf := make([]byte, UtteranceMUS.Size(*u))
	UtteranceMUS.Marshal(*u, buf)
	return buf
}

// UnmarshalUtterance deserializes an Utterance from bytes.
func UnmarshalUtterance(data []byte) (*core.Utterance, error) {
	u, _, err := UtteranceMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
