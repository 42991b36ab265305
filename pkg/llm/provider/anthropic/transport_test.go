package anthropic_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tgrelay/pkg/llm"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
)

var _ = Describe("HTTPTransport", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the body with credential headers", func() {
		var gotHeaders http.Header
		var gotBody string
		var gotMethod string
		handler = func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotHeaders = r.Header.Clone()
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			_, _ = io.WriteString(w, `{"content":[{"text":"ok"}]}`)
		}

		transport := anthropic.NewHTTPTransport(server.URL, "sk-test")
		payload, err := transport.Post(ctx, []byte(`{"model":"m"}`), time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(Equal(`{"content":[{"text":"ok"}]}`))

		Expect(gotMethod).To(Equal(http.MethodPost))
		Expect(gotBody).To(Equal(`{"model":"m"}`))
		Expect(gotHeaders.Get("Content-Type")).To(Equal("application/json"))
		Expect(gotHeaders.Get("x-api-key")).To(Equal("sk-test"))
		Expect(gotHeaders.Get("anthropic-version")).To(Equal(anthropic.APIVersion))
	})

	It("returns a StatusError for non-2xx responses", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"overloaded"}`)
		}

		transport := anthropic.NewHTTPTransport(server.URL, "sk-test")
		_, err := transport.Post(ctx, []byte(`{}`), time.Second)

		var statusErr *anthropic.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(statusErr.Body).To(ContainSubstring("overloaded"))
	})

	It("fails an attempt that exceeds its timeout", func() {
		release := make(chan struct{})
		handler = func(w http.ResponseWriter, _ *http.Request) {
			<-release
			_, _ = io.WriteString(w, `{}`)
		}
		defer close(release)

		transport := anthropic.NewHTTPTransport(server.URL, "sk-test")
		_, err := transport.Post(ctx, []byte(`{}`), 20*time.Millisecond)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("defaults to the public endpoint", func() {
		Expect(anthropic.DefaultURL).To(Equal("https://api.anthropic.com/v1/messages"))
	})

	Context("driven by a Client", func() {
		It("retries upstream failures until a response succeeds", func() {
			var calls atomic.Int32
			handler = func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) <= 2 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"third time"}]}`)
			}

			client, err := anthropic.New(anthropic.Config{
				Model:       "claude-test",
				Transport:   anthropic.NewHTTPTransport(server.URL, "sk-test"),
				BaseTimeout: 1000,
				Unit:        time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			reply, err := client.Complete(ctx, []llm.Turn{llm.NewUserTurn("hi")})
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("third time"))
			Expect(calls.Load()).To(Equal(int32(3)))
		})

		It("surfaces the final status after exhausting attempts", func() {
			var calls atomic.Int32
			handler = func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}

			client, err := anthropic.New(anthropic.Config{
				Model:       "claude-test",
				Transport:   anthropic.NewHTTPTransport(server.URL, "sk-test"),
				BaseTimeout: 1000,
				Unit:        time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Complete(ctx, []llm.Turn{llm.NewUserTurn("hi")})
			var transportErr *anthropic.TransportError
			Expect(errors.As(err, &transportErr)).To(BeTrue())
			Expect(transportErr.StatusCode()).To(Equal(http.StatusInternalServerError))
			Expect(calls.Load()).To(Equal(int32(3)))
		})
	})
})
