package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/tgrelay/pkg/metrics"
)

var _ = Describe("Collector", func() {
	var (
		live      int
		collector *metrics.Collector
	)

	BeforeEach(func() {
		live = 0
		collector = metrics.NewCollector(func() int { return live })
	})

	It("counts messages by kind", func() {
		collector.MessageHandled(metrics.KindText)
		collector.MessageHandled(metrics.KindText)
		collector.MessageHandled(metrics.KindReset)

		expected := `
# HELP tgrelay_messages_total Incoming chat messages by kind.
# TYPE tgrelay_messages_total counter
tgrelay_messages_total{kind="reset"} 1
tgrelay_messages_total{kind="text"} 2
`
		Expect(testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "tgrelay_messages_total")).To(Succeed())
	})

	It("counts attempts by outcome", func() {
		collector.ObserveAttempt(0, errors.New("timeout"), time.Second)
		collector.ObserveAttempt(1, nil, time.Second)

		expected := `
# HELP tgrelay_completion_attempts_total Completion API attempts by outcome.
# TYPE tgrelay_completion_attempts_total counter
tgrelay_completion_attempts_total{outcome="failure"} 1
tgrelay_completion_attempts_total{outcome="success"} 1
`
		Expect(testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "tgrelay_completion_attempts_total")).To(Succeed())
	})

	It("records completions with their duration", func() {
		collector.CompletionFinished(metrics.StatusSuccess, 3*time.Second)
		collector.CompletionFinished(metrics.StatusError, 200*time.Second)

		count, err := testutil.GatherAndCount(collector.Registry(), "tgrelay_completions_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))

		count, err = testutil.GatherAndCount(collector.Registry(), "tgrelay_completion_duration_seconds")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("counts event publishes", func() {
		collector.EventPublished(nil)
		collector.EventPublished(errors.New("broker down"))

		count, err := testutil.GatherAndCount(collector.Registry(), "tgrelay_turn_events_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("reads live conversations on every scrape", func() {
		live = 3
		expected := `
# HELP tgrelay_conversations Conversations currently held in memory.
# TYPE tgrelay_conversations gauge
tgrelay_conversations 3
`
		Expect(testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "tgrelay_conversations")).To(Succeed())

		live = 5
		expected = strings.Replace(expected, "tgrelay_conversations 3", "tgrelay_conversations 5", 1)
		Expect(testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "tgrelay_conversations")).To(Succeed())
	})

	It("omits the conversation gauge without a source", func() {
		c := metrics.NewCollector(nil)
		count, err := testutil.GatherAndCount(c.Registry(), "tgrelay_conversations")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("serves the exposition format over HTTP", func() {
		collector.MessageHandled(metrics.KindStart)

		rec := httptest.NewRecorder()
		collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		body, _ := io.ReadAll(rec.Body)
		Expect(string(body)).To(ContainSubstring(`tgrelay_messages_total{kind="start"} 1`))
	})
})
