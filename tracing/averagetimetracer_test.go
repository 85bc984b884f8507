package tracing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/instrument/probing"
)

var _ = Describe("AverageTimeTracer", func() {
	var (
		probe  *probing.Probe
		tracer *AverageTimeTracer
	)

	BeforeEach(func() {
		probe = probing.NewProbe("call:return")
		tracer = NewAverageTimeTracer(nil)
		probe.AcceptSink(tracer)
	})

	It("should average the durations of published events", func() {
		probe.Publish(Event{
			Kind: KindReturn, What: "c", Duration: 2 * time.Millisecond})
		probe.Publish(Event{
			Kind: KindReturn, What: "c", Duration: 4 * time.Millisecond})

		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
		Expect(tracer.AverageTime()).To(Equal(3 * time.Millisecond))
	})

	It("should respect the filter", func() {
		filtered := NewAverageTimeTracer(func(e Event) bool {
			return e.What == "interesting"
		})
		probe.AcceptSink(filtered)

		probe.Publish(Event{
			Kind: KindReturn, What: "boring",
			Duration: 10 * time.Millisecond})
		probe.Publish(Event{
			Kind: KindReturn, What: "interesting",
			Duration: 2 * time.Millisecond})

		Expect(filtered.TotalCount()).To(Equal(uint64(1)))
		Expect(filtered.AverageTime()).To(Equal(2 * time.Millisecond))
	})

	It("should ignore items that are not events", func() {
		probe.Publish("not an event")

		Expect(tracer.TotalCount()).To(Equal(uint64(0)))
	})
})

var _ = Describe("CollectingTracer", func() {
	It("should keep events in arrival order", func() {
		probe := probing.NewProbe("call:return")
		tracer := NewCollectingTracer()
		probe.AcceptSink(tracer)

		probe.Publish(Event{ID: "1", Kind: KindReturn, What: "c"})
		probe.Publish(Event{ID: "2", Kind: KindError, What: "c"})

		events := tracer.Events()
		Expect(events).To(HaveLen(2))
		Expect(events[0].ID).To(Equal("1"))
		Expect(events[1].ID).To(Equal("2"))

		tracer.Reset()
		Expect(tracer.Events()).To(BeEmpty())
	})
})
