/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"time"

	"github.com/friendsincode/hydroplan/internal/models"
)

// ContentHash fingerprints everything Assemble reads from its inputs.
// Equal hashes mean equal timelines, so results may be memoized by it.
//
// Determinism rules:
//   - Collections are hashed in caller order, since output order follows it.
//   - Every field is length-prefixed to avoid ambiguity.
//   - Times are hashed as UTC instants plus their zone name and offset.
func ContentHash(vessels []models.Vessel, tasks []models.Task) string {
	h := sha256.New()
	w := fieldWriter{h: h}

	w.uint(uint64(len(vessels)))
	for _, v := range vessels {
		w.str(v.ID)
		w.str(v.Name)
		w.float(v.DistanceKM)
		w.float(v.SpeedKnots)
		w.time(v.StartDate)
		for _, a := range []models.Allowance{v.Transit, v.Weather, v.Maintenance} {
			w.float(a.Value)
			w.str(string(a.Unit))
		}
	}

	w.uint(uint64(len(tasks)))
	for _, t := range tasks {
		w.str(t.ID)
		w.str(t.Name)
		w.str(string(t.Category))
		w.time(t.StartDate)
		w.time(t.EndDate)
		if t.VesselID != nil {
			w.uint(1)
			w.str(*t.VesselID)
		} else {
			w.uint(0)
		}
		if t.PausesSurvey {
			w.uint(1)
		} else {
			w.uint(0)
		}
		w.str(t.Recurrence)
		w.uint(uint64(t.Seq))
	}

	return hex.EncodeToString(h.Sum(nil))
}

type fieldWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *fieldWriter) uint(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	w.h.Write(w.buf[:])
}

func (w *fieldWriter) str(s string) {
	w.bytes([]byte(s))
}

func (w *fieldWriter) bytes(b []byte) {
	w.uint(uint64(len(b)))
	w.h.Write(b)
}

func (w *fieldWriter) float(f float64) {
	w.uint(math.Float64bits(f))
}

// time covers the full range of time.Time; UnixNano wraps outside
// 1678-2262. A UTC time always has a whole-minute offset, so the
// marshal cannot fail.
func (w *fieldWriter) time(t time.Time) {
	instant, _ := t.UTC().MarshalBinary()
	w.bytes(instant)
	name, offset := t.Zone()
	w.str(name)
	w.uint(uint64(int64(offset)))
}
