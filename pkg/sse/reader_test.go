package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// chunkedReader returns one chunk per Read call.
type chunkedReader struct {
	chunks []string
	err    error
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

var _ = Describe("TeeReader", func() {
	var dst *bytes.Buffer

	BeforeEach(func() {
		dst = &bytes.Buffer{}
	})

	Describe("Next", func() {
		It("reads events across chunk boundaries", func() {
			r := NewTeeReader(&chunkedReader{chunks: []string{`data: "He`, "llo\"\n\ndata: [DONE]\n\n"}}, dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Raw).To(Equal(`data: "Hello"`))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.IsDone()).To(BeTrue())

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("returns nil on empty input", func() {
			r := NewTeeReader(strings.NewReader(""), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("yields an event when the stream ends without a trailing blank line", func() {
			r := NewReader(strings.NewReader("data: unterminated"))

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Payload()).To(Equal("unterminated"))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("delivers completed events before surfacing a read error", func() {
			boom := errors.New("connection reset")
			r := NewReader(&chunkedReader{chunks: []string{"data: \"a\"\n\ndata: \"b"}, err: boom})

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Payload()).To(Equal(`"a"`))

			_, err = r.Next()
			Expect(err).To(MatchError(boom))
		})
	})

	Describe("forwarding", func() {
		It("forwards yielded events with canonical delimiters", func() {
			r := NewTeeReader(strings.NewReader("data: first\r\n\r\ndata: second\n\n"), dst)

			_, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Next()
			Expect(err).NotTo(HaveOccurred())

			Expect(dst.String()).To(Equal("data: first\n\ndata: second\n\n"))
		})

		It("does not forward comments or other fields", func() {
			r := NewTeeReader(strings.NewReader(": keep-alive\n\ndata: hello\n\n"), dst)

			_, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(dst.String()).To(Equal("data: hello\n\n"))
		})

		It("forwards nothing past the events the caller consumed", func() {
			r := NewTeeReader(strings.NewReader("data: [DONE]\n\ndata: \"late\"\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.IsDone()).To(BeTrue())

			Expect(dst.String()).To(Equal("data: [DONE]\n\n"))
		})
	})
})

var _ = Describe("Writer", func() {
	It("JSON encodes content so blank lines stay inside the payload", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		Expect(w.WriteContent("# Plan\n\n1. read\n2. write")).To(Succeed())
		Expect(w.WriteDone()).To(Succeed())

		Expect(buf.String()).To(Equal("data: \"# Plan\\n\\n1. read\\n2. write\"\n\ndata: [DONE]\n\n"))
		Expect(feedAll(buf.String())).To(HaveLen(2))
	})

	It("writes in-band errors as JSON objects", func() {
		var buf bytes.Buffer
		Expect(NewWriter(&buf).WriteError("upstream down")).To(Succeed())
		Expect(buf.String()).To(Equal("data: {\"error\":\"upstream down\"}\n\n"))
	})

	It("writes raw events verbatim", func() {
		var buf bytes.Buffer
		Expect(NewWriter(&buf).WriteRaw(Event{Raw: "data: legacy text"})).To(Succeed())
		Expect(buf.String()).To(Equal("data: legacy text\n\n"))
	})
})
