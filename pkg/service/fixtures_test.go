package service

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meme-go/meme/pkg/model"
)

var _ = Describe("Fixtures", func() {
	It("should load the test beamline", func() {
		f, err := LoadFixtures("testdata/fixtures.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Models()).To(Equal([]string{"CU_TEST"}))

		raw, ok := f.Table(model.Key{ModelName: "CU_TEST"}, model.TableRmat)
		Expect(ok).To(BeTrue())
		rmat, err := model.DecodeRmatTable(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(rmat.Len()).To(Equal(7))
		Expect(rmat.Row(3).Element).To(Equal("QM01#1"))

		raw, ok = f.Table(model.Key{ModelName: "CU_TEST", UseDesign: true, Source: "OTHER"}, model.TableTwiss)
		Expect(ok).To(BeTrue())
		twiss, err := model.DecodeTwissTable(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(twiss.Row(1).BetaX).To(Equal(4.2))
	})

	It("should hand out independent copies", func() {
		f, err := LoadFixtures("testdata/fixtures.yaml")
		Expect(err).NotTo(HaveOccurred())

		a, _ := f.Table(model.Key{ModelName: "CU_TEST"}, model.TableRmat)
		delete(a.Columns, "R11")
		b, _ := f.Table(model.Key{ModelName: "CU_TEST"}, model.TableRmat)
		Expect(b.Has("R11")).To(BeTrue())
	})

	It("should report unknown models", func() {
		f, err := ParseFixtures([]byte("models: {}\n"))
		Expect(err).NotTo(HaveOccurred())
		_, ok := f.Table(model.Key{ModelName: "CU_TEST"}, model.TableRmat)
		Expect(ok).To(BeFalse())
	})

	It("should reject malformed fixtures", func() {
		_, err := ParseFixtures([]byte("models: [1, 2]\n"))
		Expect(err).To(HaveOccurred())

		_, err = ParseFixtures([]byte("models:\n  BAD:NAME:\n    rmat: []\n"))
		Expect(err).To(HaveOccurred())

		_, err = ParseFixtures([]byte("models:\n  M:\n    rmat:\n      - element: A\n        r: [[1, 0]]\n"))
		Expect(err).To(HaveOccurred())

		_, err = LoadFixtures("testdata/missing.yaml")
		Expect(err).To(HaveOccurred())
	})
})
