package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/upbeatlab/chatrelay/pkg/eventstream"
	testutils "github.com/upbeatlab/chatrelay/pkg/utils/test"
)

var _ = Describe("Event", func() {
	It("marshals TurnCompletedEvent with expected top-level keys", func() {
		turn := testutils.NewTranscript("user-1", 0, "hi")
		event := eventstream.NewTurnCompletedEvent(eventstream.EventSource{Env: "compose", Hostname: "relay-0"}, turn)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKeyWithValue("turn", HaveKeyWithValue("conversation_id", "user-1")))
	})

	It("fills in the envelope", func() {
		turn := testutils.NewTranscript("user-1", 0, "hi")
		event := eventstream.NewTurnCompletedEvent(eventstream.EventSource{}, turn)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal("chat.turn.completed"))
		Expect(event.EventID).To(HavePrefix("evt_"))
		Expect(event.EmittedAt).NotTo(BeZero())
		Expect(event.Turn.ID).To(Equal(turn.ID))
	})

	It("copies the transcript", func() {
		turn := testutils.NewTranscript("user-1", 0, "hi")
		event := eventstream.NewTurnCompletedEvent(eventstream.EventSource{}, turn)
		turn.Response = "changed"
		Expect(event.Turn.Response).To(Equal("hi"))
	})

	It("provides ErrNilTurnEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
