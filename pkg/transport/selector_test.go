package transport_test

import (
	"context"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/upbeatlab/chatrelay/pkg/transport"
)

type fakeTransport struct {
	strategy transport.Strategy
	body     string
	err      error
	calls    int
}

func (f *fakeTransport) Strategy() transport.Strategy { return f.strategy }

func (f *fakeTransport) Open(context.Context, transport.Request) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

var _ = Describe("Selector", func() {
	var (
		primary  *fakeTransport
		fallback *fakeTransport
	)

	BeforeEach(func() {
		primary = &fakeTransport{strategy: transport.StrategyDirect, body: "data: \"primary\"\n\n"}
		fallback = &fakeTransport{strategy: transport.StrategyBuffered, body: "data: \"fallback\"\n\n"}
	})

	It("uses the primary transport when it opens", func() {
		s := transport.NewSelector(primary, fallback, nil)
		Expect(s.Primary()).To(Equal(transport.StrategyDirect))

		stream, err := s.Open(context.Background(), transport.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(stream.Strategy).To(Equal(transport.StrategyDirect))
		Expect(stream.FellBack).To(BeFalse())
		Expect(readAll(stream)).To(Equal("data: \"primary\"\n\n"))
		Expect(fallback.calls).To(BeZero())
	})

	It("retries once with the fallback when the primary fails to open", func() {
		primary.err = errors.New("connection refused")
		s := transport.NewSelector(primary, fallback, nil)

		stream, err := s.Open(context.Background(), transport.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(stream.Strategy).To(Equal(transport.StrategyBuffered))
		Expect(stream.FellBack).To(BeTrue())
		Expect(readAll(stream)).To(Equal("data: \"fallback\"\n\n"))
		Expect(primary.calls).To(Equal(1))
		Expect(fallback.calls).To(Equal(1))
	})

	It("returns both failures when the fallback fails too", func() {
		primaryErr := errors.New("connection refused")
		fallbackErr := errors.New("no route to host")
		primary.err = primaryErr
		fallback.err = fallbackErr
		s := transport.NewSelector(primary, fallback, nil)

		_, err := s.Open(context.Background(), transport.Request{})
		Expect(err).To(MatchError(primaryErr))
		Expect(err).To(MatchError(fallbackErr))
		Expect(err.Error()).To(ContainSubstring("direct transport"))
		Expect(err.Error()).To(ContainSubstring("buffered fallback"))
	})

	It("does not retry a buffered primary against itself", func() {
		buffered := &fakeTransport{strategy: transport.StrategyBuffered, err: errors.New("down")}
		s := transport.NewSelector(buffered, fallback, nil)

		_, err := s.Open(context.Background(), transport.Request{})
		Expect(err).To(MatchError(ContainSubstring("down")))
		Expect(buffered.calls).To(Equal(1))
		Expect(fallback.calls).To(BeZero())
	})

	It("does not fall back after the caller cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary.err = context.Canceled
		s := transport.NewSelector(primary, fallback, nil)

		_, err := s.Open(ctx, transport.Request{})
		Expect(err).To(MatchError(context.Canceled))
		Expect(fallback.calls).To(BeZero())
	})

	It("surfaces the primary failure when no fallback is configured", func() {
		primary.err = errors.New("refused")
		s := transport.NewSelector(primary, nil, nil)

		_, err := s.Open(context.Background(), transport.Request{})
		Expect(err).To(MatchError(ContainSubstring("refused")))
	})
})
