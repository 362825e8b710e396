package ui

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
)

// listOnly hides the scanner of the wrapped store
type listOnly struct {
	store.Store
}

func validValues() bill.FormValues {
	return bill.FormValues{
		Type:       "Transports",
		Name:       "Vol Paris Londres",
		Date:       "2004-04-04",
		Amount:     "348",
		VAT:        "70",
		Pct:        "20",
		Commentary: "séminaire",
	}
}

func pngFile() bill.Upload {
	return bill.Upload{Name: "image.png", ContentType: "image/png", Data: []byte("Image")}
}

var _ = Describe("BillForm", func() {
	var (
		ctx    context.Context
		mock   *store.Mock
		sess   session.Context
		screen *Screen
		router *Router
		form   *BillForm
	)

	mountForm := func() {
		deps := Deps{Store: mock, Session: sess, Navigator: router}
		router.Register(Bills, func(s *Screen) Component { return NewBillsList(s, deps) })
		router.Register(NewBill, func(s *Screen) Component { return NewBillForm(s, deps) })
		Expect(router.Navigate(ctx, NewBill)).To(Succeed())
		_, current := router.Current()
		form = current.(*BillForm)
	}

	BeforeEach(func() {
		ctx = context.Background()
		mock = store.NewMock()
		sess = session.For(session.User{Type: session.TypeEmployee, Email: "a@a"})
		screen = NewScreen(sess)
		router = NewRouter(screen)
	})

	JustBeforeEach(func() {
		mountForm()
	})

	Describe("Mount", func() {
		It("shows the new bill page", func() {
			doc := document(screen)
			Expect(doc.Find(".content-title").Text()).To(Equal("Envoyer une note de frais"))
			Expect(screen.Path()).To(Equal("/employee/bill/new"))
		})

		It("shows a form with nine fields", func() {
			fields := document(screen).Find(byTestID("form-new-bill"))
			Expect(fields.Find("input, select, textarea, button").Length()).To(Equal(9))
			for _, id := range []string{"expense-type", "expense-name", "datepicker", "amount", "vat", "pct", "commentary", "file", "btn-send-bill"} {
				Expect(fields.Find(byTestID(id)).Length()).To(Equal(1), id)
			}
		})

		It("offers every expense type", func() {
			Expect(document(screen).Find(byTestID("expense-type") + " option").Length()).To(Equal(len(bill.Types)))
		})

		It("highlights the mail icon", func() {
			doc := document(screen)
			Expect(doc.Find(byTestID("icon-mail")).HasClass("active-icon")).To(BeTrue())
			Expect(doc.Find(byTestID("icon-window")).HasClass("active-icon")).To(BeFalse())
		})

		It("offers prefill when the store can scan", func() {
			Expect(document(screen).Find(byTestID("form-prefill")).Length()).To(Equal(1))
		})
	})

	Describe("SelectFile", func() {
		DescribeTable("accepts images",
			func(file bill.Upload) {
				Expect(form.SelectFile(file)).To(Succeed())
				kept, ok := form.Attachment()
				Expect(ok).To(BeTrue())
				Expect(kept.Name).To(Equal(file.Name))
				Expect(document(screen).Find(byTestID("file-error")).Length()).To(Equal(0))
			},
			Entry("png", pngFile()),
			Entry("jpeg", bill.Upload{Name: "image.jpeg", ContentType: "image/jpeg", Data: []byte("Image")}),
			Entry("jpg alias", bill.Upload{Name: "image.jpg", ContentType: "image/jpg", Data: []byte("Image")}),
			Entry("no declared type", bill.Upload{Name: "scan.JPG", Data: []byte("Image")}),
		)

		It("rejects a pdf with the file type message", func() {
			err := form.SelectFile(bill.Upload{Name: "pdf", ContentType: "application/pdf", Data: []byte("PDF")})
			Expect(bill.IsValidation(err)).To(BeTrue())
			Expect(document(screen).Find(byTestID("file-error")).Text()).To(Equal("Merci de choisir un fichier de type: JPG, PNG ou JPEG"))
			_, ok := form.Attachment()
			Expect(ok).To(BeFalse())
		})

		It("keeps the accepted file when a later one is rejected", func() {
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(form.SelectFile(bill.Upload{Name: "note.pdf", ContentType: "application/pdf", Data: []byte("PDF")})).NotTo(Succeed())

			kept, ok := form.Attachment()
			Expect(ok).To(BeTrue())
			Expect(kept.Name).To(Equal("image.png"))
			Expect(document(screen).Find(byTestID("file-error")).Length()).To(Equal(1))
		})

		It("clears the file error once an image is chosen", func() {
			Expect(form.SelectFile(bill.Upload{Name: "note.pdf", ContentType: "application/pdf", Data: []byte("PDF")})).NotTo(Succeed())
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(document(screen).Find(byTestID("file-error")).Length()).To(Equal(0))
		})

		It("never calls the store", func() {
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(mock.CreateCalls).To(Equal(0))
			Expect(mock.ScanCalls).To(Equal(0))
		})
	})

	Describe("Submit", func() {
		When("the form is valid", func() {
			JustBeforeEach(func() {
				Expect(form.SelectFile(pngFile())).To(Succeed())
				Expect(form.Submit(ctx, validValues())).To(Succeed())
			})

			It("creates exactly one bill", func() {
				Expect(mock.CreateCalls).To(Equal(1))
				draft := mock.Drafts[0]
				Expect(draft.Email).To(Equal("a@a"))
				Expect(draft.Type).To(Equal("Transports"))
				Expect(draft.Status).To(Equal(bill.StatusPending))
				Expect(draft.Pct).To(Equal(20))
				Expect(draft.File.Name).To(Equal("image.png"))
			})

			It("navigates once to the bills list", func() {
				Expect(router.History()).To(Equal([]Destination{NewBill, Bills}))
				Expect(document(screen).Find(".content-title").Text()).To(Equal("Mes notes de frais"))
			})

			It("refuses a second submission", func() {
				Expect(form.Submit(ctx, validValues())).To(MatchError(ErrSubmitted))
				Expect(mock.CreateCalls).To(Equal(1))
			})
		})

		When("no file was accepted", func() {
			It("rejects the draft locally", func() {
				err := form.Submit(ctx, validValues())
				Expect(bill.IsValidation(err)).To(BeTrue())
				Expect(mock.CreateCalls).To(Equal(0))
				Expect(router.History()).To(Equal([]Destination{NewBill}))
				Expect(document(screen).Find(byTestID("file-error")).Text()).To(Equal(bill.MsgNoFile))
			})

			It("keeps showing why the last file was rejected", func() {
				Expect(form.SelectFile(bill.Upload{Name: "pdf", ContentType: "application/pdf", Data: []byte("PDF")})).NotTo(Succeed())
				Expect(form.Submit(ctx, validValues())).NotTo(Succeed())
				Expect(document(screen).Find(byTestID("file-error")).Text()).To(Equal(bill.MsgFileType))
			})
		})

		When("a field is invalid", func() {
			It("shows the error next to the field and keeps the values", func() {
				Expect(form.SelectFile(pngFile())).To(Succeed())
				values := validValues()
				values.Amount = "-3"
				Expect(bill.IsValidation(form.Submit(ctx, values))).To(BeTrue())

				doc := document(screen)
				Expect(doc.Find(byTestID("amount-error")).Text()).To(Equal(bill.MsgAmount))
				name, _ := doc.Find(byTestID("expense-name")).Attr("value")
				Expect(name).To(Equal("Vol Paris Londres"))
				Expect(mock.CreateCalls).To(Equal(0))
			})
		})

		When("the session has no email", func() {
			BeforeEach(func() {
				sess = session.For(session.User{Type: session.TypeEmployee})
				screen = NewScreen(sess)
				router = NewRouter(screen)
			})

			It("asks the user to reconnect", func() {
				Expect(form.SelectFile(pngFile())).To(Succeed())
				Expect(form.Submit(ctx, validValues())).NotTo(Succeed())
				Expect(document(screen).Find(byTestID("form-error")).Text()).To(Equal(bill.MsgEmail))
				Expect(mock.CreateCalls).To(Equal(0))
			})
		})

		DescribeTable("store failures stay on the form",
			func(status int, text string) {
				mock.FailCreateOnce(store.NewRemoteError(status))
				Expect(form.SelectFile(pngFile())).To(Succeed())

				err := form.Submit(ctx, validValues())
				Expect(err).To(MatchError(text))
				Expect(mock.CreateCalls).To(Equal(1))
				Expect(router.History()).To(Equal([]Destination{NewBill}))

				doc := document(screen)
				Expect(doc.Find(byTestID("form-error")).Text()).To(Equal(text))
				Expect(doc.Find(byTestID("form-new-bill")).Length()).To(Equal(1))
			},
			Entry("not found", 404, "Erreur 404"),
			Entry("server error", 500, "Erreur 500"),
		)

		It("can be retried after a store failure", func() {
			mock.FailCreateOnce(store.NewRemoteError(500))
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(form.Submit(ctx, validValues())).NotTo(Succeed())
			Expect(form.Submit(ctx, validValues())).To(Succeed())
			Expect(mock.CreateCalls).To(Equal(2))
			Expect(router.History()).To(Equal([]Destination{NewBill, Bills}))
		})

		When("a submission is in flight", func() {
			var (
				release func()
				done    chan error
			)

			JustBeforeEach(func() {
				release = mock.BlockCreate()
				Expect(form.SelectFile(pngFile())).To(Succeed())
				done = make(chan error, 1)
				go func() {
					defer GinkgoRecover()
					done <- form.Submit(ctx, validValues())
				}()
				Eventually(func() bool {
					_, disabled := document(screen).Find(byTestID("btn-send-bill")).Attr("disabled")
					return disabled
				}).Should(BeTrue())
			})

			AfterEach(func() {
				release()
			})

			It("rejects another submission", func() {
				Expect(form.Submit(ctx, validValues())).To(MatchError(ErrSubmitting))
				Expect(form.SelectFile(pngFile())).To(MatchError(ErrSubmitting))

				release()
				Eventually(done).Should(Receive(BeNil()))
				Expect(router.History()).To(Equal([]Destination{NewBill, Bills}))
			})

			It("drops the result after unmount", func() {
				form.Unmount()
				Eventually(done).Should(Receive(BeNil()))
				Expect(router.History()).To(Equal([]Destination{NewBill}))
			})
		})
	})

	Describe("Prefill", func() {
		It("fills blank fields from the scanned receipt", func() {
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(form.Prefill(ctx)).To(Succeed())
			Expect(mock.ScanCalls).To(Equal(1))

			doc := document(screen)
			value := func(id string) string {
				v, _ := doc.Find(byTestID(id)).Attr("value")
				return v
			}
			Expect(value("expense-name")).To(Equal("Hôtel du Centre"))
			Expect(value("datepicker")).To(Equal("2024-01-15"))
			Expect(value("amount")).To(Equal("120.50"))
			Expect(value("vat")).To(Equal("20.08"))
			Expect(doc.Find(byTestID("expense-type") + " option[selected]").Text()).To(Equal("Hôtel et logement"))
		})

		It("keeps values already typed", func() {
			Expect(form.SelectFile(pngFile())).To(Succeed())
			values := validValues()
			values.Amount = "-1"
			Expect(form.Submit(ctx, values)).NotTo(Succeed())
			Expect(form.Prefill(ctx)).To(Succeed())

			name, _ := document(screen).Find(byTestID("expense-name")).Attr("value")
			Expect(name).To(Equal("Vol Paris Londres"))
		})

		It("needs an accepted receipt", func() {
			Expect(bill.IsValidation(form.Prefill(ctx))).To(BeTrue())
			Expect(mock.ScanCalls).To(Equal(0))
			Expect(document(screen).Find(byTestID("file-error")).Text()).To(Equal(bill.MsgNoFile))
		})

		It("keeps the file type message of a rejected receipt", func() {
			Expect(form.SelectFile(bill.Upload{Name: "note.pdf", ContentType: "application/pdf", Data: []byte("PDF")})).NotTo(Succeed())
			err := form.Prefill(ctx)
			Expect(bill.IsValidation(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring(bill.MsgFileType)))
			Expect(mock.ScanCalls).To(Equal(0))
			Expect(document(screen).Find(byTestID("file-error")).Text()).To(Equal(bill.MsgFileType))
		})

		It("shows scan failures on the form", func() {
			mock.FailScanOnce(store.NewRemoteError(500))
			Expect(form.SelectFile(pngFile())).To(Succeed())
			Expect(form.Prefill(ctx)).To(MatchError("Erreur 500"))
			Expect(document(screen).Find(byTestID("form-error")).Text()).To(Equal("Erreur 500"))
			Expect(router.History()).To(Equal([]Destination{NewBill}))
		})

		When("the store cannot scan", func() {
			JustBeforeEach(func() {
				deps := Deps{Store: listOnly{mock}, Session: sess, Navigator: router}
				form = NewBillForm(screen, deps)
				Expect(form.Mount(ctx)).To(Succeed())
			})

			It("returns ErrNoScanner and hides the prefill form", func() {
				Expect(form.SelectFile(pngFile())).To(Succeed())
				Expect(form.Prefill(ctx)).To(MatchError(ErrNoScanner))
				Expect(document(screen).Find(byTestID("form-prefill")).Length()).To(Equal(0))
			})
		})
	})
})
