package probing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type collectingSink struct {
	items []any
}

func (s *collectingSink) Func(ctx ProbeCtx) {
	s.items = append(s.items, ctx.Item)
}

type panickingSink struct{}

func (s *panickingSink) Func(ctx ProbeCtx) {
	panic("broken sink")
}

var _ = Describe("Probe", func() {
	var p *Probe

	BeforeEach(func() {
		p = NewProbe("call.enter")
	})

	It("should panic if the name is empty", func() {
		Expect(func() { NewProbe("") }).To(Panic())
	})

	It("should be disabled without sinks", func() {
		Expect(p.IsEnabled()).To(BeFalse())
	})

	It("should be enabled with a sink", func() {
		p.AcceptSink(&collectingSink{})

		Expect(p.IsEnabled()).To(BeTrue())
	})

	It("should not deliver when no sink is attached", func() {
		Expect(func() { p.Publish("item") }).NotTo(Panic())
	})

	It("should multicast to all sinks", func() {
		sink1 := &collectingSink{}
		sink2 := &collectingSink{}
		p.AcceptSink(sink1)
		p.AcceptSink(sink2)

		p.Publish("item")

		Expect(sink1.items).To(Equal([]any{"item"}))
		Expect(sink2.items).To(Equal([]any{"item"}))
	})

	It("should accept multiple function sinks", func() {
		var first, second []any
		p.AcceptSink(SinkFunc(func(ctx ProbeCtx) {
			first = append(first, ctx.Item)
		}))
		p.AcceptSink(SinkFunc(func(ctx ProbeCtx) {
			second = append(second, ctx.Item)
		}))

		p.Publish("item")

		Expect(first).To(Equal([]any{"item"}))
		Expect(second).To(Equal([]any{"item"}))
	})

	It("should mute and unmute", func() {
		sink := &collectingSink{}
		p.AcceptSink(sink)

		p.Mute()
		Expect(p.IsEnabled()).To(BeFalse())
		p.Publish("dropped")

		p.Unmute()
		p.Publish("delivered")

		Expect(sink.items).To(Equal([]any{"delivered"}))
	})

	It("should isolate a panicking sink", func() {
		sink := &collectingSink{}
		p.AcceptSink(&panickingSink{})
		p.AcceptSink(sink)

		Expect(func() { p.Publish("item") }).NotTo(Panic())

		Expect(sink.items).To(Equal([]any{"item"}))
		Expect(p.NumDroppedSinkCalls()).To(Equal(uint64(1)))
	})
})

var _ = Describe("Table", func() {
	var table *Table

	BeforeEach(func() {
		table = NewTable()
	})

	It("should share one probe per name", func() {
		p1 := table.AcquireProbe("call.enter")
		p2 := table.AcquireProbe("call.enter")

		Expect(p1).To(BeIdenticalTo(p2))
		Expect(table.NumProbes()).To(Equal(1))
	})

	It("should remove the probe after the last release", func() {
		table.AcquireProbe("call.enter")
		table.AcquireProbe("call.enter")

		table.ReleaseProbe("call.enter")
		Expect(table.NumProbes()).To(Equal(1))

		table.ReleaseProbe("call.enter")
		Expect(table.NumProbes()).To(Equal(0))
	})

	It("should tolerate releasing an unknown name", func() {
		Expect(func() { table.ReleaseProbe("nope") }).NotTo(Panic())
		Expect(table.NumProbes()).To(Equal(0))
	})
})
