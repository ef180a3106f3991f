package testutils

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive,staticcheck
	. "github.com/onsi/gomega"    //nolint:revive,staticcheck

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

// MockDriver is a storage.Driver that records calls and can be told to fail.
type MockDriver struct {
	mu sync.Mutex

	// Stored accumulates every transcript passed to Put.
	Stored []*storage.Transcript

	// PutErr is returned by Put when set.
	PutErr error
}

// NewMockDriver creates a new mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

func (m *MockDriver) Put(_ context.Context, t *storage.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	cp := *t
	m.Stored = append(m.Stored, &cp)
	return nil
}

func (m *MockDriver) Get(_ context.Context, id string) (*storage.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Stored {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound{ID: id}
}

func (m *MockDriver) ListByConversation(_ context.Context, conversationID string) ([]*storage.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*storage.Transcript{}
	for _, t := range m.Stored {
		if t.ConversationID == conversationID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockDriver) Close() error { return nil }

// StoredCount returns the number of stored transcripts.
func (m *MockDriver) StoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Stored)
}

// DescribeDriver registers the behaviour every storage.Driver must have.
// newDriver is called before each spec; the returned driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	It("stores and retrieves a transcript", func() {
		t := NewTranscript("user-1", 0, "hello")
		t.FellBack = true
		Expect(driver.Put(ctx, t)).To(Succeed())

		got, err := driver.Get(ctx, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(t))
	})

	It("replaces a transcript stored twice", func() {
		t := NewTranscript("user-1", 0, "draft")
		Expect(driver.Put(ctx, t)).To(Succeed())

		t.Response = "final"
		t.Outcome = storage.OutcomeError
		Expect(driver.Put(ctx, t)).To(Succeed())

		got, err := driver.Get(ctx, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Response).To(Equal("final"))
		Expect(got.Outcome).To(Equal(storage.OutcomeError))
	})

	It("returns ErrNotFound for a missing transcript", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.ErrNotFound{ID: "missing"}))
	})

	It("lists a conversation oldest first", func() {
		second := NewTranscript("user-1", 5, "second")
		first := NewTranscript("user-1", 1, "first")
		other := NewTranscript("user-2", 3, "other")
		for _, t := range []*storage.Transcript{second, other, first} {
			Expect(driver.Put(ctx, t)).To(Succeed())
		}

		list, err := driver.ListByConversation(ctx, "user-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].Response).To(Equal("first"))
		Expect(list[1].Response).To(Equal("second"))
	})

	It("returns an empty list for an unknown conversation", func() {
		list, err := driver.ListByConversation(ctx, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())
	})

	It("rejects invalid transcripts", func() {
		Expect(driver.Put(ctx, nil)).To(HaveOccurred())
		Expect(driver.Put(ctx, &storage.Transcript{ConversationID: "c"})).To(MatchError("transcript id is required"))
	})
}
