package sqlite

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("dsn helpers", func() {
	DescribeTable("isRemote",
		func(dsn string, remote bool) {
			Expect(isRemote(dsn)).To(Equal(remote))
		},
		Entry("file path", "/var/lib/relay/relay.db", false),
		Entry("memory", ":memory:", false),
		Entry("libsql url", "libsql://chat-upbeat.turso.io?authToken=abc", true),
		Entry("https url", "https://chat-upbeat.turso.io", true),
	)

	It("redacts credentials", func() {
		Expect(redact("libsql://user:pw@chat.turso.io?authToken=secret")).To(Equal("libsql://chat.turso.io"))
		Expect(redact("/tmp/relay.db")).To(Equal("/tmp/relay.db"))
	})
})
