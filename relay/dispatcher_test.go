package relay_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tgrelay/pkg/conversation"
	"github.com/papercomputeco/tgrelay/pkg/llm"
	"github.com/papercomputeco/tgrelay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/tgrelay/pkg/telegram"
	"github.com/papercomputeco/tgrelay/relay"
)

var _ = Describe("Dispatcher", func() {
	var (
		store      *conversation.Store
		completer  *fakeCompleter
		sender     *fakeSender
		dispatcher *relay.Dispatcher
		ctx        context.Context
	)

	BeforeEach(func() {
		store = conversation.NewStore(conversation.Options{})
		completer = &fakeCompleter{reply: "pong"}
		sender = &fakeSender{}
		ctx = context.Background()

		r, err := relay.New(relay.Options{Store: store, Completer: completer})
		Expect(err).NotTo(HaveOccurred())
		dispatcher = relay.NewDispatcher(r, sender, "relay_bot", nil)
	})

	It("replies to text messages in the same chat", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "ping"))

		Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: "pong"}}))
	})

	It("sends every segment of a long reply in order", func() {
		completer.reply = strings.Repeat("a", 4096) + strings.Repeat("b", 4096) + "tail"

		dispatcher.Handle(ctx, textUpdate(1, 77, "long"))

		sent := sender.messages()
		Expect(sent).To(HaveLen(3))
		Expect(sent[0].Text).To(HavePrefix("a"))
		Expect(sent[1].Text).To(HavePrefix("b"))
		Expect(sent[2].Text).To(Equal("tail"))
	})

	It("ignores updates without text", func() {
		dispatcher.Handle(ctx, telegram.Update{UpdateID: 1})
		dispatcher.Handle(ctx, textUpdate(2, 77, ""))

		Expect(sender.messages()).To(BeEmpty())
		Expect(completer.calls).To(BeEmpty())
	})

	It("answers /start with the greeting", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "/start"))

		Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.StartText}}))
	})

	It("clears context on /reset", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))
		dispatcher.Handle(ctx, textUpdate(2, 77, "/reset"))

		Expect(store.Snapshot(77)).To(BeEmpty())
		Expect(sender.messages()[1].Text).To(Equal(relay.ResetText))
	})

	It("accepts commands addressed to this bot", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))
		dispatcher.Handle(ctx, textUpdate(2, 77, "/reset@relay_bot"))

		Expect(store.Snapshot(77)).To(BeEmpty())
	})

	It("ignores commands addressed to another bot", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))
		dispatcher.Handle(ctx, textUpdate(2, 77, "/reset@other_bot"))

		Expect(store.Snapshot(77)).To(HaveLen(2))
		Expect(sender.messages()).To(HaveLen(1))
	})

	It("ignores unknown commands instead of relaying them", func() {
		dispatcher.Handle(ctx, textUpdate(1, 77, "/help"))

		Expect(sender.messages()).To(BeEmpty())
		Expect(completer.calls).To(BeEmpty())
	})

	It("delivers the generic failure text after exhausted retries", func() {
		completer.err = &anthropic.TransportError{Attempts: 3, Err: errors.New("503")}

		dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))

		Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.FailureText}}))
	})

	Describe("catch-all", func() {
		It("recovers from a panicking handler and reports it", func() {
			completer.fn = func([]llm.Turn) (string, error) { panic("kaboom") }

			Expect(func() { dispatcher.Handle(ctx, textUpdate(1, 77, "hello")) }).NotTo(Panic())
			Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.UnknownFailureText}}))
		})

		It("reports unclassified errors", func() {
			completer.err = errors.New("unexpected")

			dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))
			Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.UnknownFailureText}}))
		})

		It("reports Telegram network errors", func() {
			sender.err = &telegram.NetworkError{Method: "sendMessage", Err: errors.New("connection reset")}
			sender.failFirst = true

			dispatcher.Handle(ctx, textUpdate(1, 77, "hello"))
			Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.NetworkFailureText}}))
		})

		It("reports Telegram API errors", func() {
			sender.err = &telegram.APIError{Method: "sendMessage", Code: 400, Description: "Bad Request"}
			sender.failFirst = true

			dispatcher.Handle(ctx, textUpdate(1, 77, "/start"))
			Expect(sender.messages()).To(Equal([]sentMessage{{ChatID: 77, Text: relay.APIFailureText}}))
		})

		It("survives when the failure report cannot be sent either", func() {
			sender.err = &telegram.NetworkError{Method: "sendMessage", Err: errors.New("down")}

			Expect(func() { dispatcher.Handle(ctx, textUpdate(1, 77, "hello")) }).NotTo(Panic())
			Expect(sender.messages()).To(BeEmpty())
		})
	})
})
