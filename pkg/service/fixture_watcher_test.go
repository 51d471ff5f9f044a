package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/meme-go/meme/pkg/model"
)

// singleElementFixtures is a two-row model whose BPM1 has the given beta_x.
func singleElementFixtures(betaX float64) []byte {
	file := FixtureFile{Models: map[string]FixtureModel{
		"CU_WATCH": {
			Rmat: []model.RmatRow{
				{Ordinal: 0, Element: "BEGINNING", R: model.Identity()},
				{Ordinal: 1, Element: "BPM1", Device: "BPMS:IN20:221", S: 2, R: model.Identity()},
			},
			Twiss: []model.TwissRow{
				{Ordinal: 0, Element: "BEGINNING"},
				{Ordinal: 1, Element: "BPM1", Device: "BPMS:IN20:221", Twiss: model.Twiss{BetaX: betaX}},
			},
		},
	}}
	data, err := yaml.Marshal(file)
	Expect(err).NotTo(HaveOccurred())
	return data
}

var _ = Describe("FixtureWatcher", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		path    string
		server  *TableServer
		watcher *FixtureWatcher
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		DeferCleanup(cancel)

		dir, err := os.MkdirTemp("", "meme-fixtures-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		path = filepath.Join(dir, "fixtures.yaml")
		Expect(os.WriteFile(path, singleElementFixtures(1.5), 0o644)).To(Succeed())

		fixtures, err := LoadFixtures(path)
		Expect(err).NotTo(HaveOccurred())

		server, err = NewTableServer(fixtures, ServerConfig{Address: "127.0.0.1:0"})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Start(ctx)).To(Succeed())
		DeferCleanup(server.Stop)

		watcher, err = WatchFixtures(path, server, nil)
		Expect(err).NotTo(HaveOccurred())
		go watcher.Run(ctx)
	})

	It("should serve the rewritten file after a refresh", func() {
		cfg := DefaultClientConfig()
		cfg.Address = server.Addr().String()
		cfg.Key = model.Key{ModelName: "CU_WATCH"}
		sess, err := Open(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sess.Close)

		beta, err := sess.Model().TwissAttributeOf(ctx, "BPMS:IN20:221", model.AttrBetaX, model.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(beta).To(Equal(1.5))

		Expect(os.WriteFile(path, singleElementFixtures(7.25), 0o644)).To(Succeed())
		Eventually(watcher.Reloaded(), 2*time.Second).Should(Receive())

		// Cached until refreshed.
		beta, err = sess.Model().TwissAttributeOf(ctx, "BPM1", model.AttrBetaX, model.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(beta).To(Equal(1.5))

		Expect(sess.Model().RefreshTwissData(ctx)).To(Succeed())
		beta, err = sess.Model().TwissAttributeOf(ctx, "BPM1", model.AttrBetaX, model.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(beta).To(Equal(7.25))
	})

	It("should keep the previous fixtures when the file is broken", func() {
		before := server.Fixtures()

		Expect(os.WriteFile(path, []byte("models: [not, a, map"), 0o644)).To(Succeed())
		Consistently(watcher.Reloaded(), 500*time.Millisecond).ShouldNot(Receive())

		Expect(server.Fixtures()).To(BeIdenticalTo(before))
		Expect(server.Fixtures().Models()).To(ConsistOf("CU_WATCH"))
	})

	It("should ignore other files in the directory", func() {
		other := filepath.Join(filepath.Dir(path), "notes.txt")
		Expect(os.WriteFile(other, []byte("hello"), 0o644)).To(Succeed())
		Consistently(watcher.Reloaded(), 300*time.Millisecond).ShouldNot(Receive())
	})
})
