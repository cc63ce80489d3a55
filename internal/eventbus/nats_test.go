/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hydroplan/internal/events"
)

func newOfflineBus() *NATSBus {
	return &NATSBus{
		local:   events.NewBus(),
		logger:  zerolog.Nop(),
		nodeID:  "node-a",
		subject: DefaultNATSConfig().SubjectPrefix,
	}
}

func TestNATSMessageRoundTrip(t *testing.T) {
	data, err := marshalNATSMessage(events.EventVesselUpdated, events.Payload{"vessel_id": "v1"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventVesselUpdated || msg.NodeID != "node-a" || msg.MessageID == "" {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Payload["vessel_id"] != "v1" {
		t.Fatalf("payload = %v", msg.Payload)
	}
}

func TestUnmarshalRejectsMissingType(t *testing.T) {
	if _, err := unmarshalNATSMessage([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for message without event_type")
	}
}

func TestPublishWithoutConnectionStaysLocal(t *testing.T) {
	nb := newOfflineBus()
	sub := nb.Subscribe(events.EventTaskCreated)

	nb.Publish(events.EventTaskCreated, events.Payload{"task_id": "t1"})

	select {
	case got := <-sub:
		if got["task_id"] != "t1" {
			t.Fatalf("payload = %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("local subscriber received nothing")
	}
	if err := nb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDeliverRemoteSkipsOwnMessages(t *testing.T) {
	nb := newOfflineBus()
	sub := nb.Subscribe(events.EventTimelineBuilt)

	nb.deliverRemote(&natsMessage{EventType: events.EventTimelineBuilt, NodeID: "node-a", Payload: events.Payload{}})
	select {
	case got := <-sub:
		t.Fatalf("own message delivered: %v", got)
	default:
	}

	nb.deliverRemote(&natsMessage{EventType: events.EventTimelineBuilt, NodeID: "node-b", Payload: events.Payload{"hash": "x"}})
	select {
	case got := <-sub:
		if got["hash"] != "x" {
			t.Fatalf("payload = %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("remote message not delivered")
	}
}

func TestSubjectFor(t *testing.T) {
	nb := newOfflineBus()
	if got := nb.subjectFor(events.EventVesselDeleted); got != "hydroplan.events.vessel.deleted" {
		t.Fatalf("subject = %q", got)
	}
}
