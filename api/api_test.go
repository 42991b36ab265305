package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tgrelay/pkg/metrics"
)

type staticStatus struct {
	conversations int
}

func (s *staticStatus) Conversations() int           { return s.conversations }
func (s *staticStatus) Model() string                { return "claude-test" }
func (s *staticStatus) Windows() (user, history int) { return 5, 10 }

var _ = Describe("Server", func() {
	var (
		status    *staticStatus
		collector *metrics.Collector
		server    *Server
	)

	BeforeEach(func() {
		status = &staticStatus{conversations: 4}
		collector = metrics.NewCollector(status.Conversations)
		server = NewServer(Config{ListenAddr: ":0"}, status, collector.Handler(), nil)
	})

	get := func(path string) (*http.Response, []byte) {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	It("answers pings", func() {
		resp, body := get("/ping")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	It("reports status", func() {
		resp, body := get("/status")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var got StatusResponse
		Expect(json.Unmarshal(body, &got)).To(Succeed())
		Expect(got).To(Equal(StatusResponse{
			Conversations: 4,
			Model:         "claude-test",
			UserWindow:    5,
			HistoryWindow: 10,
		}))
	})

	It("serves Prometheus metrics", func() {
		collector.MessageHandled(metrics.KindText)

		resp, body := get("/metrics")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`tgrelay_messages_total{kind="text"} 1`))
		Expect(string(body)).To(ContainSubstring("tgrelay_conversations 4"))
	})

	It("does not serve metrics without a handler", func() {
		server = NewServer(Config{}, status, nil, nil)
		resp, _ := get("/metrics")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})
