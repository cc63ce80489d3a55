/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planning turns vessels and tasks into a project timeline.
//
// The pipeline is one-way and recomputed from scratch on every call:
//
//	EstimateVessel  vessel inputs -> survey days, total days, end date
//	Pauses          tasks -> the vessel's pause tasks in chronological order
//	BuildSegments   vessel span + pauses -> contiguous survey/pause segments
//	Assemble        all of the above plus unassigned tasks -> Timeline
//
// Every function here is pure: no I/O, no shared state, no logging.
// Overlapping pauses on one vessel are treated as sequential, not merged;
// a pause that starts before the cursor is clamped to it and may produce a
// zero-length segment. Zero-length segments are kept in the output.
package planning
