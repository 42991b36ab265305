package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tgrelay/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("targets credentials.toml in the override directory", func() {
		Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[providers.telegram]
token = "123:abc"
`
			Expect(os.WriteFile(mgr.GetTarget(), []byte(data), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Providers).To(HaveKeyWithValue("telegram", credentials.ProviderCredential{Token: "123:abc"}))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(mgr.GetTarget(), []byte("not valid [[["), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("writes the file with restricted permissions", func() {
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "sk-ant-test")).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("rejects nil credentials", func() {
			Expect(mgr.Save(nil)).To(HaveOccurred())
		})
	})

	Describe("SetKey and GetKey", func() {
		It("round-trips secrets per provider", func() {
			Expect(mgr.SetKey(credentials.ProviderTelegram, "123:abc")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "sk-ant-1")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "sk-ant-2")).To(Succeed())

			token, err := mgr.GetKey(credentials.ProviderTelegram)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal("123:abc"))

			key, err := mgr.GetKey(credentials.ProviderAnthropic)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-ant-2"))
		})

		It("refuses unknown providers", func() {
			Expect(mgr.SetKey("openai", "sk-x")).To(MatchError(ContainSubstring("unsupported provider")))
		})

		It("returns empty string for a provider with nothing stored", func() {
			key, err := mgr.GetKey(credentials.ProviderTelegram)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("RemoveKey", func() {
		It("removes a stored secret and leaves the others", func() {
			Expect(mgr.SetKey(credentials.ProviderTelegram, "123:abc")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "sk-ant")).To(Succeed())

			Expect(mgr.RemoveKey(credentials.ProviderTelegram)).To(Succeed())

			providers, err := mgr.ListProviders()
			Expect(err).NotTo(HaveOccurred())
			Expect(providers).To(Equal([]string{"anthropic"}))
		})

		It("is a no-op for a provider with nothing stored", func() {
			Expect(mgr.RemoveKey(credentials.ProviderTelegram)).To(Succeed())
		})
	})

	Describe("ListProviders", func() {
		It("returns stored providers in sorted order", func() {
			Expect(mgr.SetKey(credentials.ProviderTelegram, "t")).To(Succeed())
			Expect(mgr.SetKey(credentials.ProviderAnthropic, "a")).To(Succeed())

			providers, err := mgr.ListProviders()
			Expect(err).NotTo(HaveOccurred())
			Expect(providers).To(Equal([]string{"anthropic", "telegram"}))
		})
	})
})

var _ = Describe("providers", func() {
	It("maps providers to their environment variables", func() {
		Expect(credentials.EnvVarForProvider("telegram")).To(Equal("BOT_TOKEN"))
		Expect(credentials.EnvVarForProvider("anthropic")).To(Equal("CLAUDE_API_KEY"))
		Expect(credentials.EnvVarForProvider("unknown")).To(BeEmpty())
	})

	It("supports telegram and anthropic only", func() {
		Expect(credentials.SupportedProviders()).To(ConsistOf("telegram", "anthropic"))
		Expect(credentials.IsSupportedProvider("telegram")).To(BeTrue())
		Expect(credentials.IsSupportedProvider("openai")).To(BeFalse())
	})
})
