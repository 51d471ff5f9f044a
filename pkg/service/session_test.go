package service

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meme-go/meme/pkg/connection"
	"github.com/meme-go/meme/pkg/interaction"
	"github.com/meme-go/meme/pkg/model"
)

var _ = Describe("Session against a TableServer", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		fixtures *Fixtures
		server   *TableServer
		cfg      ClientConfig
	)

	rmatPath := model.Key{ModelName: "CU_TEST"}.Path(model.TableRmat)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)

		var err error
		fixtures, err = LoadFixtures("testdata/fixtures.yaml")
		Expect(err).NotTo(HaveOccurred())

		server, err = NewTableServer(fixtures, ServerConfig{Address: "127.0.0.1:0"})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Start(ctx)).To(Succeed())
		Expect(server.State()).To(Equal(StateRunning))

		cfg = DefaultClientConfig()
		cfg.Address = server.Addr().String()
		cfg.Key = model.Key{ModelName: "CU_TEST"}
		cfg.RequestTimeout = 2 * time.Second
	})

	AfterEach(func() {
		if server.State() == StateRunning {
			Expect(server.Stop()).To(Succeed())
		}
		cancel()
	})

	open := func() *Session {
		sess, err := Open(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sess.Close)
		return sess
	}

	fixtureRmat := func() *model.RmatTable {
		raw, ok := fixtures.Table(cfg.Key, model.TableRmat)
		Expect(ok).To(BeTrue())
		t, err := model.DecodeRmatTable(raw)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	It("should compose transfer matrices from the served table", func() {
		sess := open()
		rmat := fixtureRmat()

		inv, _, err := rmat.Row(1).R.Inverse()
		Expect(err).NotTo(HaveOccurred())
		want := rmat.Row(6).R.Mul(inv)

		got, err := sess.Model().TransferMatrix(ctx, "QUAD:IN20:121", "BPMS:IN20:221", model.RmatOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.EqualApprox(want, 1e-12)).To(BeTrue())

		fromStart, err := sess.Model().TransferMatrix(ctx, "", "BPM1", model.RmatOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fromStart).To(Equal(rmat.Row(6).R))
	})

	It("should fetch each table once while caching", func() {
		sess := open()
		for range 3 {
			_, err := sess.Model().ZPosition(ctx, "BPM1", model.Options{})
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(server.Requests(rmatPath)).To(Equal(1))

		Expect(sess.Model().RefreshRmatData(ctx)).To(Succeed())
		Expect(server.Requests(rmatPath)).To(Equal(2))
	})

	It("should fetch on every call without caching", func() {
		cfg.NoCaching = true
		sess := open()
		for range 3 {
			_, err := sess.Model().ZPosition(ctx, "BPM1", model.Options{})
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(server.Requests(rmatPath)).To(Equal(3))
	})

	It("should fetch both tables when initializing", func() {
		cfg.Initialize = true
		open()
		Expect(server.TotalRequests()).To(Equal(2))
	})

	It("should pick split element halves", func() {
		sess := open()
		s, err := sess.Model().ZPositions(ctx, []string{"QUAD:IN20:151", "QM01"}, model.Options{Half: model.SecondHalf})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal([]float64{3.2, 3.2}))

		s1, err := sess.Model().ZPosition(ctx, "QUAD:IN20:151", model.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s1).To(Equal(3.1))
	})

	It("should serve the design model", func() {
		cfg.Key.UseDesign = true
		sess := open()
		beta, err := sess.Model().TwissAttributeOf(ctx, "QUAD:IN20:121", model.AttrBetaX, model.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(beta).To(Equal(4.2))
		Expect(server.Requests(cfg.Key.Path(model.TableTwiss))).To(Equal(1))
	})

	It("should degrade unknown names to NaN when asked", func() {
		sess := open()
		out, err := sess.Model().Rmat(ctx, []string{"QE01"}, []string{"BPM1", "NOT:A:DEVICE"}, model.RmatOptions{IgnoreBadNames: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(out[0].IsNaN()).To(BeFalse())
		Expect(out[1].IsNaN()).To(BeTrue())

		betas, err := sess.Model().TwissAttribute(ctx, []string{"NOT:A:DEVICE"}, model.AttrBetaY, model.Options{IgnoreBadNames: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsNaN(betas[0])).To(BeTrue())
	})

	It("should report models the service does not know", func() {
		cfg.Key = model.Key{ModelName: "SC_NOPE"}
		sess := open()
		_, err := sess.Model().ZPosition(ctx, "BPM1", model.Options{})
		Expect(errors.Is(err, model.ErrFetch)).To(BeTrue())
		Expect(interaction.IsNotFound(err)).To(BeTrue())
	})

	It("should answer pings", func() {
		sess := open()
		rtt, err := sess.Ping(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rtt).To(BeNumerically(">", 0))
	})

	It("should notice the server going away", func() {
		sess := open()
		Eventually(server.ConnectionCount).Should(Equal(1))
		Expect(server.Stop()).To(Succeed())
		Eventually(sess.Done()).Should(BeClosed())

		err := sess.Model().RefreshRmatData(ctx)
		Expect(errors.Is(err, model.ErrFetch)).To(BeTrue())

		_, err = sess.Ping(ctx)
		Expect(err).To(MatchError(ErrSessionClosed))
	})

	It("should reconnect after the server restarts", func() {
		cfg.Reconnect = true
		cfg.ReconnectMaxDelay = 50 * time.Millisecond
		sess := open()
		Expect(sess.Model().RefreshRmatData(ctx)).To(Succeed())
		firstConn := sess.ConnID()

		addr := server.Addr().String()
		Expect(server.Stop()).To(Succeed())
		Eventually(sess.State).Should(Equal(connection.StateReconnecting))
		Consistently(sess.Done(), 100*time.Millisecond).ShouldNot(BeClosed())

		_, err := sess.Ping(ctx)
		Expect(errors.Is(err, ErrDisconnected)).To(BeTrue())

		// Cached tables keep answering while the service is away.
		_, err = sess.Model().TransferMatrix(ctx, "", "BPM1", model.RmatOptions{})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewTableServer(fixtures, ServerConfig{Address: addr})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Start(ctx)).To(Succeed())

		Eventually(sess.State, 5*time.Second).Should(Equal(connection.StateConnected))
		Expect(sess.ConnID()).NotTo(Equal(firstConn))
		Expect(sess.Model().RefreshRmatData(ctx)).To(Succeed())
		_, err = sess.Ping(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should close cleanly", func() {
		sess, err := Open(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		Eventually(server.ConnectionCount).Should(Equal(1))
		Expect(sess.Close()).To(Succeed())
		Eventually(server.ConnectionCount).Should(Equal(0))
		Expect(sess.Close()).To(Succeed())
	})

	It("should reject invalid configs", func() {
		cfg.Key = model.Key{}
		_, err := Open(ctx, cfg)
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())

		cfg.Key = model.Key{ModelName: "CU_TEST"}
		cfg.Address = ""
		_, err = Open(ctx, cfg)
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
	})

	It("should refuse to start twice", func() {
		Expect(server.Start(ctx)).To(MatchError(ErrAlreadyStarted))
	})
})
