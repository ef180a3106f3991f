package transport_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/upbeatlab/chatrelay/pkg/transport"
)

var _ = Describe("Proxied", func() {
	var (
		server *httptest.Server
		hold   chan struct{}
	)

	BeforeEach(func() {
		hold = make(chan struct{})
	})

	AfterEach(func() {
		close(hold)
		if server != nil {
			server.Close()
			server = nil
		}
	})

	It("reports its strategy", func() {
		Expect(transport.NewProxied(transport.Config{}).Strategy()).To(Equal(transport.StrategyProxied))
	})

	It("re-emits every backend event verbatim", func() {
		frames := []string{"data: \"Hello\"\n\n", "data: \"Hello, world\"\n\n", "data: [DONE]\n\n"}
		server = newServer(streamHandler(frames, nil))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{UserID: "u", Message: "hi"})).To(Equal(
			"data: \"Hello\"\n\ndata: \"Hello, world\"\n\ndata: [DONE]\n\n",
		))
	})

	It("re-frames events split across backend writes", func() {
		server = newServer(streamHandler([]string{"data: \"He", "llo\"\n\ndata: [DONE]\n\n"}, nil))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{})).To(Equal("data: \"Hello\"\n\ndata: [DONE]\n\n"))
	})

	It("drops keep-alive comments", func() {
		server = newServer(streamHandler([]string{": ping\n\n", "data: \"Hi\"\n\n", "data: [DONE]\n\n"}, nil))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{})).To(Equal("data: \"Hi\"\n\ndata: [DONE]\n\n"))
	})

	It("appends a terminal event when the backend closes without one", func() {
		server = newServer(streamHandler([]string{"data: \"Hello\"\n\n"}, nil))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{})).To(Equal("data: \"Hello\"\n\ndata: [DONE]\n\n"))
	})

	It("stops at the terminal event even if the backend keeps sending", func() {
		server = newServer(streamHandler([]string{"data: \"Hello\"\n\ndata: [DONE]\n\ndata: \"late\"\n\n"}, hold))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{})).To(Equal("data: \"Hello\"\n\ndata: [DONE]\n\n"))
	})

	It("re-emits backend failures as an error and terminal event", func() {
		server = newServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		Expect(openAll(p, transport.Request{})).To(Equal(fmt.Sprintf(errorThenDone, "backend returned status 500")))
	})

	It("re-emits a broken connection as an error and terminal event", func() {
		server = newServer(truncatedHandler("data: \"Hello\"\n\n"))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		out := openAll(p, transport.Request{})
		Expect(out).To(HavePrefix("data: \"Hello\"\n\ndata: {\"error\":"))
		Expect(out).To(HaveSuffix("data: [DONE]\n\n"))
	})

	It("re-emits an idle timeout as an error and terminal event", func() {
		server = newServer(streamHandler([]string{"data: \"Hello\"\n\n"}, hold))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL, IdleTimeout: 100 * time.Millisecond})
		Expect(openAll(p, transport.Request{})).To(Equal(
			"data: \"Hello\"\n\n" + fmt.Sprintf(errorThenDone, transport.ErrIdleTimeout.Error()),
		))
	})

	It("fails to open when the backend is unreachable", func() {
		p := transport.NewProxied(transport.Config{BaseURL: closedURL()})
		_, err := p.Open(context.Background(), transport.Request{})
		Expect(err).To(HaveOccurred())
	})

	It("releases the backend connection when the consumer closes early", func() {
		released := make(chan struct{})
		server = newServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			streamHandler([]string{"data: \"Hello\"\n\n"}, nil)(w, r)
			<-r.Context().Done()
			close(released)
		}))

		p := transport.NewProxied(transport.Config{BaseURL: server.URL})
		rc, err := p.Open(context.Background(), transport.Request{})
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 64)
		_, err = rc.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.Close()).To(Succeed())

		Eventually(released).WithTimeout(2 * time.Second).Should(BeClosed())
	})
})
