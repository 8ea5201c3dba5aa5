// Package transform narrows schemaless source documents into typed target
// records. It is the only place where source.Document values are interpreted.
package transform

import (
	"fmt"
	"time"

	"doc-migrator/internal/model"
	"doc-migrator/internal/source"

	"github.com/shopspring/decimal"
)

// Default record names used when the source leaves them empty.
const (
	defaultAccountName  = "Unnamed Account"
	defaultExpenseTitle = "Untitled Expense"
)

// ValidationError reports a document that cannot be turned into a record.
type ValidationError struct {
	Kind   string
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s %s: %s", e.Kind, e.ID, e.Reason)
	}
	return fmt.Sprintf("invalid %s %s: field '%s' %s", e.Kind, e.ID, e.Field, e.Reason)
}

// Mapper converts source documents into target records. The zero value uses
// the wall clock.
type Mapper struct {
	// Now supplies the migration timestamp used for updated_at and as the
	// fallback for missing creation dates.
	Now func() time.Time
}

func (m *Mapper) now() time.Time {
	if m == nil || m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

// audit fills the bookkeeping columns. deleted marks a soft-deleted document.
func (m *Mapper) audit(created any, deleted bool) model.Audit {
	now := m.now()
	a := model.Audit{CreatedAt: dateOr(created, now), UpdatedAt: now}
	if deleted {
		a.DeletedAt = &now
	}
	return a
}

func money(v any) decimal.Decimal {
	return decimal.NewFromFloat(ParseNumber(v))
}

func requireDoc(kind string, doc source.Document) error {
	if doc == nil {
		return &ValidationError{Kind: kind, Reason: "document is empty"}
	}
	return nil
}

func blobField(kind, id, field string, v any) (*string, error) {
	blob, err := jsonBlob(v)
	if err != nil {
		return nil, &ValidationError{Kind: kind, ID: id, Field: field, Reason: fmt.Sprintf("cannot be encoded: %v", err)}
	}
	return blob, nil
}

var (
	bankFields = [][2]string{
		{"bankAccountHolderName", "bankAccountHolderName"},
		{"bankName", "bankName"},
		{"bankBranchName", "bankBranch"},
		{"bankAccountNumber", "bankAccountNumber"},
		{"bankAccountType", "bankAccountType"},
		{"bankIFSCNumber", "IFSCNumber"},
	}
	upiFields = [][2]string{
		{"upiPayeeName", "payeeName"},
		{"upiId", "upiId"},
		{"upiMobileNumber", "mobileNumber"},
	}
)

// Account maps an accounts document.
func (m *Mapper) Account(doc source.Document) (*model.Account, error) {
	if err := requireDoc("account", doc); err != nil {
		return nil, err
	}
	id := ResolveID(doc.ID())
	bank, err := blobField("account", id, "bankDetail", collect(doc, bankFields))
	if err != nil {
		return nil, err
	}
	upi, err := blobField("account", id, "upiDetail", collect(doc, upiFields))
	if err != nil {
		return nil, err
	}

	name := doc.String("accountName")
	if name == "" {
		name = defaultAccountName
	}
	return &model.Account{
		ID:                id,
		Name:              name,
		Type:              AccountType.Map(doc.String("accountType")),
		Balance:           money(doc.Get("currentBalance")),
		Currency:          model.DefaultCurrency,
		Status:            AccountStatus.Map(doc.String("accountStatus")),
		AccountHolderName: optString(doc, "bankAccountHolderName"),
		AccountHolderID:   optString(doc, "userId"),
		ActivatedOn:       ParseDate(doc.Get("activatedOn")),
		BankDetail:        bank,
		UPIDetail:         upi,
		Audit:             m.audit(doc.Get("createdOn"), doc.Truthy("deleted")),
	}, nil
}

// Donation maps a contributions document. Donor identity comes from the
// linked member for members and from the guest fields for guests.
func (m *Mapper) Donation(doc source.Document) (*model.Donation, error) {
	if err := requireDoc("donation", doc); err != nil {
		return nil, err
	}
	id := ResolveID(doc.ID())

	var custom any
	if arr, ok := doc.Array("customFields"); ok {
		custom = arr
	}
	additional, err := blobField("donation", id, "customFields", custom)
	if err != nil {
		return nil, err
	}

	d := &model.Donation{
		ID:                   id,
		Type:                 DonationType.Map(doc.String("type")),
		Amount:               money(doc.Get("amount")),
		Currency:             model.DefaultCurrency,
		Status:               DonationStatus.Map(doc.String("status")),
		IsGuest:              doc.Bool("isGuest"),
		StartDate:            ParseDate(doc.Get("startDate")),
		EndDate:              ParseDate(doc.Get("endDate")),
		RaisedOn:             dateOr(doc.Get("raisedOn"), m.now()),
		PaidOn:               ParseDate(doc.Get("paidOn")),
		ConfirmedByID:        optString(doc, "paymentConfirmedBy"),
		ConfirmedOn:          ParseDate(doc.Get("paymentConfirmedOn")),
		PaymentMethod:        optString(doc, "paymentMethod"),
		PaidToAccountID:      optString(doc, "accountId"),
		ForEventID:           optString(doc, "eventId"),
		PaidUsingUPI:         optString(doc, "paidUPIName"),
		IsPaymentNotified:    doc.Truthy("isPaymentNotified"),
		TransactionRef:       optString(doc, "transactionRefNumber"),
		Remarks:              optString(doc, "comment"),
		CancellationReason:   optString(doc, "cancelReason"),
		LaterPaymentReason:   optString(doc, "payLaterReason"),
		PaymentFailureDetail: optString(doc, "paymentFailDetail"),
		AdditionalFields:     additional,
		Audit:                m.audit(doc.Get("raisedOn"), doc.Truthy("deleted")),
	}
	if d.IsGuest {
		d.DonorName = optString(doc, "guestFullNameOrOrgName")
		d.DonorEmail = optString(doc, "guestEmailAddress")
		d.DonorPhone = optString(doc, "guestContactNumber")
	} else {
		d.DonorID = optString(doc, "userId")
	}
	return d, nil
}

// Transaction maps a transactions document. Either endpoint may be nil.
func (m *Mapper) Transaction(doc source.Document) (*model.Transaction, error) {
	if err := requireDoc("transaction", doc); err != nil {
		return nil, err
	}
	description := doc.String("transactionDescription")
	refID := optString(doc, "transactionRefId")
	if refID == nil {
		refID = optString(doc, "transactionRef")
	}
	return &model.Transaction{
		ID:              ResolveID(doc.ID()),
		Type:            TransactionType.Map(doc.String("transactionType")),
		Status:          TransactionStatus.Map(doc.String("status")),
		Amount:          money(doc.Get("transactionAmt")),
		Description:     description,
		ReferenceID:     refID,
		ReferenceType:   optString(doc, "transactionRefType"),
		Currency:        model.DefaultCurrency,
		FromAccountID:   optString(doc, "fromAccount"),
		ToAccountID:     optString(doc, "toAccount"),
		TransactionDate: dateOr(doc.Get("transactionDate"), m.now()),
		Particulars:     description,
		CreatedByID:     optString(doc, "createdById"),
		Audit:           m.audit(doc.Get("creationDate"), doc.Truthy("revertedTransaction")),
	}, nil
}

// Expense maps an expenses document. The source spells the delegation flag
// "deligated".
func (m *Mapper) Expense(doc source.Document) (*model.Expense, error) {
	if err := requireDoc("expense", doc); err != nil {
		return nil, err
	}
	id := ResolveID(doc.ID())
	items, err := blobField("expense", id, "expenseItems", doc.Get("expenseItems"))
	if err != nil {
		return nil, err
	}

	title := doc.String("expenseTitle")
	if title == "" {
		title = defaultExpenseTitle
	}
	now := m.now()
	return &model.Expense{
		ID:             id,
		Title:          title,
		Items:          items,
		Amount:         money(doc.Get("expenseAmount")),
		Currency:       model.DefaultCurrency,
		Status:         ExpenseStatus.Map(doc.String("status")),
		Description:    optString(doc, "expenseDescription"),
		ReferenceID:    optString(doc, "expenseRefId"),
		ReferenceType:  optString(doc, "expenseRefType"),
		IsDelegated:    doc.Truthy("deligated"),
		CreatedByID:    optString(doc, "createdById"),
		PaidByID:       optString(doc, "paidById"),
		FinalizedByID:  optString(doc, "finalizedById"),
		FinalizedOn:    ParseDate(doc.Get("finalizedOn")),
		SettledByID:    optString(doc, "settledById"),
		SettledOn:      ParseDate(doc.Get("settledOn")),
		RejectedByID:   optString(doc, "rejectedById"),
		UpdatedByID:    optString(doc, "updatedById"),
		UpdatedOn:      ParseDate(doc.Get("updatedOn")),
		AccountID:      optString(doc, "expenseAccountId"),
		AccountName:    optString(doc, "expenseAccountName"),
		TransactionRef: optString(doc, "transactionRefNumber"),
		ExpenseDate:    dateOr(doc.Get("expenseDate"), now),
		ExpenseCreated: dateOr(doc.Get("expenseCreatedOn"), now),
		Remarks:        optString(doc, "remarks"),
		Audit:          m.audit(doc.Get("expenseCreatedOn"), doc.Truthy("deleted")),
	}, nil
}

// UserProfile maps a user_profiles document. Derived records are built by
// the fanout package.
func (m *Mapper) UserProfile(doc source.Document) (*model.UserProfile, error) {
	if err := requireDoc("user", doc); err != nil {
		return nil, err
	}
	id := ResolveID(doc.ID())
	logins, err := blobField("user", id, "loginMethods", doc.Get("loginMethods"))
	if err != nil {
		return nil, err
	}

	status := doc.String("status")
	if status == "" {
		status = defaultUserStatus
	}
	return &model.UserProfile{
		ID:                 id,
		Title:              optString(doc, "title"),
		FirstName:          doc.String("firstName"),
		MiddleName:         optString(doc, "middleName"),
		LastName:           doc.String("lastName"),
		DateOfBirth:        ParseDate(doc.Get("dateOfBirth")),
		Gender:             optString(doc, "gender"),
		About:              optString(doc, "about"),
		Picture:            optString(doc, "avatarUrl"),
		Email:              optString(doc, "email"),
		IsPublic:           optBool(doc, "publicProfile"),
		AuthUserID:         optString(doc, "userId"),
		Status:             status,
		IsSameAddress:      optBool(doc, "presentPermanentSame"),
		LoginMethods:       logins,
		DonationPauseStart: ParseDate(doc.Get("donationPauseStartDate")),
		DonationPauseEnd:   ParseDate(doc.Get("donationPauseEndDate")),
		Audit:              m.audit(doc.Get("createdOn"), doc.Truthy("deleted")),
	}, nil
}
