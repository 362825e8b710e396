package billing

import (
	"net/url"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func parseQuery(link string) url.Values {
	u, err := url.Parse(link)
	Expect(err).NotTo(HaveOccurred())
	return u.Query()
}

var _ = Describe("Signer", func() {
	var (
		signer  *Signer
		now     time.Time
		expires int64
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		signer = NewSigner([]byte("secret"))
		signer.now = func() time.Time { return now }
		expires = now.Add(time.Minute).Unix()
	})

	It("validates its own signatures", func() {
		sig := signer.Sign("bill-1", expires)
		Expect(signer.Validate("bill-1", strconv.FormatInt(expires, 10), sig)).To(BeTrue())
	})

	It("rejects another bill id", func() {
		sig := signer.Sign("bill-1", expires)
		Expect(signer.Validate("bill-2", strconv.FormatInt(expires, 10), sig)).To(BeFalse())
	})

	It("rejects expired links", func() {
		sig := signer.Sign("bill-1", expires)
		now = now.Add(2 * time.Minute)
		Expect(signer.Validate("bill-1", strconv.FormatInt(expires, 10), sig)).To(BeFalse())
	})

	It("rejects signatures from another secret", func() {
		sig := NewSigner([]byte("other")).Sign("bill-1", expires)
		Expect(signer.Validate("bill-1", strconv.FormatInt(expires, 10), sig)).To(BeFalse())
	})

	It("rejects malformed expiries", func() {
		Expect(signer.Validate("bill-1", "soon", "abc")).To(BeFalse())
	})

	Describe("DeriveLinkKey", func() {
		It("derives a stable key distinct from the secret", func() {
			key := DeriveLinkKey([]byte("secret"))
			Expect(key).To(HaveLen(32))
			Expect(key).NotTo(Equal([]byte("secret")))
			Expect(DeriveLinkKey([]byte("secret"))).To(Equal(key))
			Expect(DeriveLinkKey([]byte("other"))).NotTo(Equal(key))
		})

		It("does not accept links signed with the raw secret", func() {
			derived := NewSigner(DeriveLinkKey([]byte("secret")))
			derived.now = func() time.Time { return now }
			sig := signer.Sign("bill-1", expires)
			Expect(derived.Validate("bill-1", strconv.FormatInt(expires, 10), sig)).To(BeFalse())
			Expect(derived.Validate("bill-1", strconv.FormatInt(expires, 10), derived.Sign("bill-1", expires))).To(BeTrue())
		})
	})
})
