package ui

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
)

// dateColumn returns the date cell of every displayed row
func dateColumn(doc *goquery.Document) []string {
	var dates []string
	doc.Find(byTestID("tbody") + " tr").Each(func(_ int, row *goquery.Selection) {
		dates = append(dates, row.Find("td").Eq(2).Text())
	})
	return dates
}

var _ = Describe("BillsList", func() {
	var (
		ctx    context.Context
		mock   *store.Mock
		sess   session.Context
		screen *Screen
		router *Router
		list   *BillsList
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = store.NewMock()
		sess = session.For(session.User{Type: session.TypeEmployee, Email: "a@a"})
		screen = NewScreen(sess)
		router = NewRouter(screen)
		deps := Deps{Store: mock, Session: sess, Navigator: router}
		router.Register(Bills, func(s *Screen) Component { return NewBillsList(s, deps) })
		router.Register(NewBill, func(s *Screen) Component { return NewBillForm(s, deps) })
		list = NewBillsList(screen, deps)
	})

	Describe("Render", func() {
		When("bills are loaded", func() {
			BeforeEach(func() {
				Expect(list.Render(Loaded{Bills: store.FixtureBills()})).To(Succeed())
			})

			It("orders bills from latest to earliest", func() {
				Expect(dateColumn(document(screen))).To(Equal([]string{
					"2004-04-04",
					"2003-03-03",
					"2002-02-02",
					"2001-01-01",
				}))
			})

			It("shows the status label and amount", func() {
				first := document(screen).Find(byTestID("tbody") + " tr").First()
				Expect(first.Find("td").Eq(3).Text()).To(Equal("400.00 €"))
				Expect(first.Find("td").Eq(4).Text()).To(Equal("En attente"))
			})

			It("links every eye icon to its receipt", func() {
				icon := document(screen).Find(byTestID("icon-eye")).First()
				url, ok := icon.Attr("data-bill-url")
				Expect(ok).To(BeTrue())
				Expect(url).To(Equal("https://localhost:3456/images/preview-facture-free-201801-pdf-1.jpg"))
			})

			It("highlights the bills icon", func() {
				doc := document(screen)
				Expect(doc.Find(byTestID("icon-window")).HasClass("active-icon")).To(BeTrue())
				Expect(doc.Find(byTestID("icon-mail")).HasClass("active-icon")).To(BeFalse())
			})

			It("does not show a modal", func() {
				Expect(document(screen).Find(byTestID("modal")).Length()).To(Equal(0))
			})
		})

		DescribeTable("keeps dates non-increasing whatever the input order",
			func(order []int) {
				fixtures := store.FixtureBills()
				input := make([]bill.Bill, 0, len(order))
				for _, i := range order {
					input = append(input, fixtures[i])
				}
				Expect(list.Render(Loaded{Bills: input})).To(Succeed())

				dates := dateColumn(document(screen))
				Expect(dates).To(HaveLen(len(order)))
				for i := 1; i < len(dates); i++ {
					Expect(dates[i-1] >= dates[i]).To(BeTrue(), "%v is not ordered", dates)
				}
			},
			Entry("fixture order", []int{0, 1, 2, 3}),
			Entry("reversed", []int{3, 2, 1, 0}),
			Entry("oldest first", []int{1, 3, 2, 0}),
			Entry("single bill", []int{2}),
		)

		It("puts unreadable dates last", func() {
			bills := store.FixtureBills()
			bills[0].Date = "not a date"
			Expect(list.Render(Loaded{Bills: bills})).To(Succeed())
			Expect(dateColumn(document(screen))).To(Equal([]string{
				"2003-03-03",
				"2002-02-02",
				"2001-01-01",
				"not a date",
			}))
		})

		It("renders an empty table body for no bills", func() {
			Expect(list.Render(Loaded{})).To(Succeed())
			doc := document(screen)
			Expect(doc.Find(byTestID("tbody")).Length()).To(Equal(1))
			Expect(doc.Find(byTestID("tbody") + " tr").Length()).To(Equal(0))
			Expect(doc.Find(byTestID("error-message")).Length()).To(Equal(0))
		})

		When("loading", func() {
			It("shows the loading page without rows", func() {
				Expect(list.Render(Loading{})).To(Succeed())
				doc := document(screen)
				Expect(doc.Find(byTestID("loading")).Text()).To(Equal("Loading..."))
				Expect(doc.Find(byTestID("tbody")).Length()).To(Equal(0))
			})
		})

		When("failed", func() {
			It("shows the error page with the message", func() {
				Expect(list.Render(Failed{Message: "some error message"})).To(Succeed())
				doc := document(screen)
				Expect(doc.Find(".content-title").Text()).To(Equal("Erreur"))
				Expect(doc.Find(byTestID("error-message")).Text()).To(Equal("some error message"))
				Expect(doc.Find(byTestID("tbody")).Length()).To(Equal(0))
			})
		})
	})

	Describe("FetchAndRender", func() {
		It("lists the bills from the store", func() {
			Expect(list.FetchAndRender(ctx)).To(Succeed())
			Expect(mock.ListCalls).To(Equal(1))
			Expect(document(screen).Find(byTestID("tbody") + " tr").Length()).To(Equal(len(store.FixtureBills())))
			Expect(document(screen).Find(".content-title").Text()).To(Equal("Mes notes de frais"))
		})

		DescribeTable("shows store failures verbatim",
			func(status int, text string) {
				mock.FailListOnce(store.NewRemoteError(status))
				Expect(list.FetchAndRender(ctx)).To(Succeed())

				doc := document(screen)
				Expect(doc.Find(byTestID("error-message")).Text()).To(Equal(text))
				Expect(doc.Find(byTestID("tbody")).Length()).To(Equal(0))
			},
			Entry("not found", 404, "Erreur 404"),
			Entry("server error", 500, "Erreur 500"),
		)

		It("shows plain errors by their text", func() {
			mock.FailListOnce(errors.New("Erreur 404"))
			Expect(list.FetchAndRender(ctx)).To(Succeed())
			Expect(document(screen).Find(byTestID("error-message")).Text()).To(Equal("Erreur 404"))
		})
	})

	Describe("InspectReceipt", func() {
		BeforeEach(func() {
			Expect(list.FetchAndRender(ctx)).To(Succeed())
		})

		It("opens the receipt modal", func() {
			Expect(list.InspectReceipt("UIUZtnPQvnbFnB0ozvJh")).To(Succeed())
			doc := document(screen)
			Expect(doc.Find(byTestID("modal")).Length()).To(Equal(1))
			Expect(doc.Find(byTestID("modal-title")).Text()).To(Equal("Justificatif"))
			src, _ := doc.Find(byTestID("modal-image")).Attr("src")
			Expect(src).To(Equal("https://localhost:3456/images/facture-client-php-exportee.png"))
			Expect(doc.Find(byTestID("modal-status")).Text()).To(Equal("Accepté"))
		})

		It("shows the same modal twice without calling the store", func() {
			Expect(list.InspectReceipt("BeKy5Mo4jkmdfPGYpTxZ")).To(Succeed())
			first, err := document(screen).Find(byTestID("modal")).Html()
			Expect(err).NotTo(HaveOccurred())

			Expect(list.InspectReceipt("BeKy5Mo4jkmdfPGYpTxZ")).To(Succeed())
			second, err := document(screen).Find(byTestID("modal")).Html()
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(mock.ListCalls).To(Equal(1))
			Expect(mock.CreateCalls).To(Equal(0))
			Expect(mock.UpdateCalls).To(Equal(0))
		})

		It("rejects bills that are not displayed", func() {
			Expect(errors.Is(list.InspectReceipt("unknown"), ErrUnknownBill)).To(BeTrue())
		})
	})

	Describe("CreateNew", func() {
		It("navigates to the new bill form without calling the store", func() {
			Expect(router.Navigate(ctx, Bills)).To(Succeed())
			_, current := router.Current()
			Expect(current.(*BillsList).CreateNew(ctx)).To(Succeed())

			dest, _ := router.Current()
			Expect(dest).To(Equal(NewBill))
			Expect(router.History()).To(Equal([]Destination{Bills, NewBill}))
			Expect(mock.ListCalls).To(Equal(1))
			Expect(mock.CreateCalls).To(Equal(0))
			Expect(document(screen).Find(".content-title").Text()).To(Equal("Envoyer une note de frais"))
		})
	})

	Describe("Mount", func() {
		It("loads the bills", func() {
			Expect(router.Navigate(ctx, Bills)).To(Succeed())
			Expect(screen.Path()).To(Equal("/employee/bills"))
			Expect(document(screen).Find(byTestID("tbody") + " tr").Length()).To(Equal(4))
		})

		It("requires a session", func() {
			list = NewBillsList(screen, Deps{Store: mock, Session: session.Static{}})
			Expect(list.Mount(ctx)).To(MatchError(session.ErrNoSession))
			Expect(mock.ListCalls).To(Equal(0))
		})
	})

	Describe("Unmount", func() {
		It("stops drawing on the screen", func() {
			Expect(list.Render(Loaded{Bills: store.FixtureBills()})).To(Succeed())
			list.Unmount()
			Expect(list.Render(Failed{Message: "late"})).To(Succeed())
			Expect(document(screen).Find(byTestID("error-message")).Length()).To(Equal(0))
			Expect(document(screen).Find(byTestID("tbody") + " tr").Length()).To(Equal(4))
		})
	})
})
