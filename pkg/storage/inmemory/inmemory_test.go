package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/upbeatlab/chatrelay/pkg/storage"
	"github.com/upbeatlab/chatrelay/pkg/storage/inmemory"
	testutils "github.com/upbeatlab/chatrelay/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("does not share state with callers", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		t := testutils.NewTranscript("c", 0, "original")
		Expect(d.Put(ctx, t)).To(Succeed())
		t.Response = "mutated"

		got, err := d.Get(ctx, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Response).To(Equal("original"))
	})
})
