package tracing

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/instrument/probing"
)

var _ = Describe("Timer", func() {
	var (
		returnProbe *probing.Probe
		errorProbe  *probing.Probe
		returnSink  *eventCollector
		errorSink   *eventCollector
	)

	BeforeEach(func() {
		returnProbe = probing.NewProbe("call:return")
		errorProbe = probing.NewProbe("call:error")
		returnSink = &eventCollector{}
		errorSink = &eventCollector{}
	})

	It("should panic if what is empty", func() {
		Expect(func() {
			StartTimer(context.Background(), "", nil, true, nil, nil)
		}).To(Panic())
	})

	It("should publish a return event when subscribed", func() {
		returnProbe.AcceptSink(returnSink)

		timer := StartTimer(context.Background(), "call",
			[]any{1, "a"}, true, returnProbe, errorProbe)
		timer.FinalizeReturn("ok")

		Expect(returnSink.events()).To(HaveLen(1))

		event := returnSink.events()[0]
		Expect(event.Kind).To(Equal(KindReturn))
		Expect(event.What).To(Equal("call"))
		Expect(event.Args).To(Equal([]any{1, "a"}))
		Expect(event.Result).To(Equal("ok"))
		Expect(event.ID).To(Equal(timer.ID()))
		Expect(event.Duration).To(BeNumerically(">=", 0))
	})

	It("should publish an error event when subscribed", func() {
		errorProbe.AcceptSink(errorSink)
		boom := errors.New("boom")

		timer := StartTimer(context.Background(), "call",
			nil, true, returnProbe, errorProbe)
		timer.FinalizeError(boom)

		Expect(errorSink.events()).To(HaveLen(1))
		Expect(errorSink.events()[0].Kind).To(Equal(KindError))
		Expect(errorSink.events()[0].Err).To(Equal(boom))
	})

	It("should finalize at most once", func() {
		returnProbe.AcceptSink(returnSink)
		errorProbe.AcceptSink(errorSink)

		timer := StartTimer(context.Background(), "call",
			nil, true, returnProbe, errorProbe)
		timer.FinalizeReturn("first")
		timer.FinalizeError(errors.New("second"))
		timer.FinalizeReturn("third")

		Expect(returnSink.events()).To(HaveLen(1))
		Expect(returnSink.events()[0].Result).To(Equal("first"))
		Expect(errorSink.events()).To(BeEmpty())
	})

	It("should panic when finalizing with a nil error", func() {
		timer := StartTimer(context.Background(), "call",
			nil, true, nil, nil)

		Expect(func() { timer.FinalizeError(nil) }).To(Panic())
	})

	It("should record a sub-task on the parent without the result", func() {
		returnProbe.AcceptSink(returnSink)

		parent := StartTimer(context.Background(), "outer",
			nil, true, returnProbe, errorProbe)
		ctx := ContextWithTimer(context.Background(), parent)

		child := StartTimer(ctx, "inner", nil, true, nil, nil)
		child.FinalizeReturn("hidden")

		parent.FinalizeReturn("visible")

		Expect(returnSink.events()).To(HaveLen(1))

		event := returnSink.events()[0]
		Expect(event.SubTasks).To(HaveLen(1))
		Expect(event.SubTasks[0].What).To(Equal("inner"))
		Expect(event.SubTasks[0].ParentID).To(Equal(parent.ID()))
		Expect(event.SubTasks[0].Result).To(BeNil())
	})

	It("should not nest when implicit is false", func() {
		parent := StartTimer(context.Background(), "outer",
			nil, true, nil, nil)
		ctx := ContextWithTimer(context.Background(), parent)

		child := StartTimer(ctx, "inner", nil, false, nil, nil)
		child.FinalizeReturn("standalone")

		Expect(child.ParentID()).To(Equal(""))
		Expect(parent.NumSubTasks()).To(Equal(0))
	})

	It("should track sub-tasks even when nobody listens", func() {
		parent := StartTimer(context.Background(), "outer",
			nil, true, nil, nil)
		ctx := ContextWithTimer(context.Background(), parent)

		child := StartTimer(ctx, "inner", nil, true, nil, nil)
		child.FinalizeReturn(nil)

		Expect(parent.NumSubTasks()).To(Equal(1))
	})

	It("should record sub-tasks in completion order under concurrency",
		func() {
			parent := StartTimer(context.Background(), "outer",
				nil, true, nil, nil)
			ctx := ContextWithTimer(context.Background(), parent)

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				child := StartTimer(ctx, "inner", nil, true, nil, nil)
				wg.Add(1)
				go func() {
					defer wg.Done()
					child.FinalizeReturn(nil)
				}()
			}
			wg.Wait()

			Expect(parent.NumSubTasks()).To(Equal(50))
		})

	It("should keep queue marks consistent when a timeout races them",
		func() {
			errorProbe.AcceptSink(errorSink)

			for i := 0; i < 100; i++ {
				timer := StartTimer(context.Background(), "call",
					nil, true, returnProbe, errorProbe)
				timer.MarkEnqueued()

				var wg sync.WaitGroup
				wg.Add(2)
				go func() {
					defer wg.Done()
					timer.MarkDequeued()
				}()
				go func() {
					defer wg.Done()
					timer.FinalizeError(ErrTimeout)
				}()
				wg.Wait()
			}

			Expect(errorSink.events()).To(HaveLen(100))
			for _, event := range errorSink.events() {
				Expect(event.EnqueuedDuration).
					To(BeNumerically(">=", 0))
			}
		})

	It("should report enqueued duration only for pooled invocations",
		func() {
			returnProbe.AcceptSink(returnSink)

			inline := StartTimer(context.Background(), "call",
				nil, true, returnProbe, nil)
			inline.FinalizeReturn(nil)

			pooled := StartTimer(context.Background(), "call",
				nil, true, returnProbe, nil)
			pooled.MarkEnqueued()
			time.Sleep(time.Millisecond)
			pooled.MarkDequeued()
			pooled.FinalizeReturn(nil)

			events := returnSink.events()
			Expect(events).To(HaveLen(2))
			Expect(events[0].EnqueuedDuration).To(BeZero())
			Expect(events[1].EnqueuedDuration).To(BeNumerically(">", 0))
			Expect(events[1].EnqueuedDuration).
				To(BeNumerically("<=", events[1].Duration))
		})
})

// eventCollector is a sink that records the trace events it receives.
type eventCollector struct {
	lock     sync.Mutex
	received []Event
}

func (c *eventCollector) Func(ctx probing.ProbeCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.received = append(c.received, ctx.Item.(Event))
}

func (c *eventCollector) events() []Event {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]Event(nil), c.received...)
}
