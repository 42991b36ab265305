package tgrelaycmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	tgrelaycmder "github.com/papercomputeco/tgrelay/cmd/tgrelay"
)

var _ = Describe("NewTgrelayCmd", func() {
	It("wires every subcommand", func() {
		cmd := tgrelaycmder.NewTgrelayCmd()

		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "chat", "auth", "config", "version"))
	})

	It("exposes the global flags to subcommands", func() {
		cmd := tgrelaycmder.NewTgrelayCmd()
		Expect(cmd.PersistentFlags().Lookup("debug").Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("routes config-dir through to subcommands", func() {
		cmd := tgrelaycmder.NewTgrelayCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"config", "get", "anthropic.max_retries", "--config-dir", GinkgoT().TempDir()})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("3"))
	})
})
