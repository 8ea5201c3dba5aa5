// Package model defines the strongly typed relational records produced by the
// migration and the column layout used to write them.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Target table names.
const (
	TableAccounts     = "accounts"
	TableDonations    = "donations"
	TableTransactions = "transactions"
	TableExpenses     = "expenses"
	TableUserProfiles = "user_profiles"
	TableUserRoles    = "user_roles"
	TablePhoneNumbers = "phone_numbers"
	TableAddresses    = "addresses"
	TableLinks        = "links"
)

// DefaultCurrency is applied to every monetary record.
const DefaultCurrency = "INR"

// Record is a row ready to be inserted into the target store.
// Columns and Values are parallel slices.
type Record interface {
	Table() string
	PrimaryKey() string
	Columns() []string
	Values() []any
}

// Audit holds the bookkeeping columns shared by all primary records.
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	Version   int
}

func (a Audit) columns() []string {
	return []string{"created_at", "updated_at", "deleted_at", "version"}
}

func (a Audit) values() []any {
	return []any{a.CreatedAt, a.UpdatedAt, a.DeletedAt, a.Version}
}

// Account is a ledger account.
type Account struct {
	ID                string
	Name              string
	Type              string
	Balance           decimal.Decimal
	Currency          string
	Status            string
	Description       *string
	AccountHolderName *string
	AccountHolderID   *string
	ActivatedOn       *time.Time
	BankDetail        *string // JSON
	UPIDetail         *string // JSON
	Audit
}

func (a *Account) Table() string      { return TableAccounts }
func (a *Account) PrimaryKey() string { return a.ID }

func (a *Account) Columns() []string {
	return append([]string{
		"id", "name", "type", "balance", "currency", "status", "description",
		"account_holder_name", "account_holder_id", "activated_on", "bank_detail", "upi_detail",
	}, a.Audit.columns()...)
}

func (a *Account) Values() []any {
	return append([]any{
		a.ID, a.Name, a.Type, a.Balance, a.Currency, a.Status, a.Description,
		a.AccountHolderName, a.AccountHolderID, a.ActivatedOn, a.BankDetail, a.UPIDetail,
	}, a.Audit.values()...)
}

// Donation is a contribution raised against a member or a guest donor.
type Donation struct {
	ID                   string
	Type                 string
	Amount               decimal.Decimal
	Currency             string
	Status               string
	DonorID              *string
	DonorName            *string
	DonorEmail           *string
	DonorPhone           *string
	IsGuest              bool
	StartDate            *time.Time
	EndDate              *time.Time
	RaisedOn             time.Time
	PaidOn               *time.Time
	ConfirmedByID        *string
	ConfirmedOn          *time.Time
	PaymentMethod        *string
	PaidToAccountID      *string
	ForEventID           *string
	PaidUsingUPI         *string
	IsPaymentNotified    bool
	TransactionRef       *string
	Remarks              *string
	CancellationReason   *string
	LaterPaymentReason   *string
	PaymentFailureDetail *string
	AdditionalFields     *string // JSON array
	Audit
}

func (d *Donation) Table() string      { return TableDonations }
func (d *Donation) PrimaryKey() string { return d.ID }

func (d *Donation) Columns() []string {
	return append([]string{
		"id", "type", "amount", "currency", "status",
		"donor_id", "donor_name", "donor_email", "donor_phone", "is_guest",
		"start_date", "end_date", "raised_on", "paid_on", "confirmed_by_id", "confirmed_on",
		"payment_method", "paid_to_account_id", "for_event_id", "paid_using_upi", "is_payment_notified",
		"transaction_ref", "remarks", "cancelletion_reason", "later_payment_reason", "payment_failure_detail",
		"additional_fields",
	}, d.Audit.columns()...)
}

func (d *Donation) Values() []any {
	return append([]any{
		d.ID, d.Type, d.Amount, d.Currency, d.Status,
		d.DonorID, d.DonorName, d.DonorEmail, d.DonorPhone, d.IsGuest,
		d.StartDate, d.EndDate, d.RaisedOn, d.PaidOn, d.ConfirmedByID, d.ConfirmedOn,
		d.PaymentMethod, d.PaidToAccountID, d.ForEventID, d.PaidUsingUPI, d.IsPaymentNotified,
		d.TransactionRef, d.Remarks, d.CancellationReason, d.LaterPaymentReason, d.PaymentFailureDetail,
		d.AdditionalFields,
	}, d.Audit.values()...)
}

// Transaction moves money between two accounts. At least one endpoint is set.
type Transaction struct {
	ID              string
	Type            string
	Status          string
	Amount          decimal.Decimal
	Description     string
	ReferenceID     *string
	ReferenceType   *string
	Currency        string
	FromAccountID   *string
	ToAccountID     *string
	TransactionDate time.Time
	Particulars     string
	CreatedByID     *string
	Audit
}

func (t *Transaction) Table() string      { return TableTransactions }
func (t *Transaction) PrimaryKey() string { return t.ID }

func (t *Transaction) Columns() []string {
	return append([]string{
		"id", "type", "status", "amount", "description", "reference_id", "reference_type", "currency",
		"from_account_id", "to_account_id", "transaction_date", "particulars", "created_by_id",
	}, t.Audit.columns()...)
}

func (t *Transaction) Values() []any {
	return append([]any{
		t.ID, t.Type, t.Status, t.Amount, t.Description, t.ReferenceID, t.ReferenceType, t.Currency,
		t.FromAccountID, t.ToAccountID, t.TransactionDate, t.Particulars, t.CreatedByID,
	}, t.Audit.values()...)
}

// Expense is a spend request and its approval trail.
type Expense struct {
	ID             string
	Title          string
	Items          *string // JSON array
	Amount         decimal.Decimal
	Currency       string
	Status         string
	Description    *string
	ReferenceID    *string
	ReferenceType  *string
	IsDelegated    bool
	CreatedByID    *string
	PaidByID       *string
	FinalizedByID  *string
	FinalizedOn    *time.Time
	SettledByID    *string
	SettledOn      *time.Time
	RejectedByID   *string
	UpdatedByID    *string
	UpdatedOn      *time.Time
	AccountID      *string
	AccountName    *string
	TransactionRef *string
	ExpenseDate    time.Time
	ExpenseCreated time.Time
	Remarks        *string
	Audit
}

func (e *Expense) Table() string      { return TableExpenses }
func (e *Expense) PrimaryKey() string { return e.ID }

func (e *Expense) Columns() []string {
	return append([]string{
		"id", "title", "items", "amount", "currency", "status", "description",
		"reference_id", "reference_type", "is_delegated",
		"created_by_id", "paid_by_id", "finalized_by_id", "finalized_on", "settled_by_id", "settled_on",
		"rejected_by_id", "updated_by_id", "updated_on",
		"account_id", "account_name", "transaction_ref", "expense_date", "expense_created", "remarks",
	}, e.Audit.columns()...)
}

func (e *Expense) Values() []any {
	return append([]any{
		e.ID, e.Title, e.Items, e.Amount, e.Currency, e.Status, e.Description,
		e.ReferenceID, e.ReferenceType, e.IsDelegated,
		e.CreatedByID, e.PaidByID, e.FinalizedByID, e.FinalizedOn, e.SettledByID, e.SettledOn,
		e.RejectedByID, e.UpdatedByID, e.UpdatedOn,
		e.AccountID, e.AccountName, e.TransactionRef, e.ExpenseDate, e.ExpenseCreated, e.Remarks,
	}, e.Audit.values()...)
}

// UserProfile is a member record. Roles, phones, addresses and links hang off it.
type UserProfile struct {
	ID                 string
	Title              *string
	FirstName          string
	MiddleName         *string
	LastName           string
	DateOfBirth        *time.Time
	Gender             *string
	About              *string
	Picture            *string
	Email              *string
	IsPublic           *bool
	AuthUserID         *string
	Status             string
	IsTemporary        bool
	IsSameAddress      *bool
	LoginMethods       *string // JSON
	PanNumber          *string
	AadharNumber       *string
	DonationPauseStart *time.Time
	DonationPauseEnd   *time.Time
	Audit
}

func (u *UserProfile) Table() string      { return TableUserProfiles }
func (u *UserProfile) PrimaryKey() string { return u.ID }

func (u *UserProfile) Columns() []string {
	return append([]string{
		"id", "title", "first_name", "middle_name", "last_name", "date_of_birth", "gender", "about",
		"picture", "email", "is_public", "auth_user_id", "status", "is_temporary", "is_same_address",
		"login_methods", "pan_number", "aadhar_number", "donation_pause_start", "donation_pause_end",
	}, u.Audit.columns()...)
}

func (u *UserProfile) Values() []any {
	return append([]any{
		u.ID, u.Title, u.FirstName, u.MiddleName, u.LastName, u.DateOfBirth, u.Gender, u.About,
		u.Picture, u.Email, u.IsPublic, u.AuthUserID, u.Status, u.IsTemporary, u.IsSameAddress,
		u.LoginMethods, u.PanNumber, u.AadharNumber, u.DonationPauseStart, u.DonationPauseEnd,
	}, u.Audit.values()...)
}

// UserRole grants a role to a user. The first role of a user is its default.
type UserRole struct {
	ID           string
	RoleCode     string
	RoleName     string
	AuthRoleCode string
	IsDefault    bool
	UserID       string
	CreatedAt    time.Time
	CreatedBy    *string
	Version      int
}

func (r *UserRole) Table() string      { return TableUserRoles }
func (r *UserRole) PrimaryKey() string { return r.ID }

func (r *UserRole) Columns() []string {
	return []string{"id", "role_code", "role_name", "auth_role_code", "is_default", "user_id", "created_at", "created_by", "version"}
}

func (r *UserRole) Values() []any {
	return []any{r.ID, r.RoleCode, r.RoleName, r.AuthRoleCode, r.IsDefault, r.UserID, r.CreatedAt, r.CreatedBy, r.Version}
}

// PhoneNumber belongs to a user.
type PhoneNumber struct {
	ID          string
	PhoneCode   *string
	PhoneNumber string
	Hidden      bool
	Primary     bool
	UserID      string
	Version     int
}

func (p *PhoneNumber) Table() string      { return TablePhoneNumbers }
func (p *PhoneNumber) PrimaryKey() string { return p.ID }

func (p *PhoneNumber) Columns() []string {
	return []string{"id", "phone_code", "phone_number", "hidden", "is_primary", "user_id", "version"}
}

func (p *PhoneNumber) Values() []any {
	return []any{p.ID, p.PhoneCode, p.PhoneNumber, p.Hidden, p.Primary, p.UserID, p.Version}
}

// Address types.
const (
	AddressPresent   = "present"
	AddressPermanent = "permanent"
)

// Address belongs to a user.
type Address struct {
	ID           string
	AddressLine1 *string
	AddressLine2 *string
	AddressLine3 *string
	Hometown     *string
	ZipCode      *string
	State        *string
	District     *string
	Country      *string
	AddressType  string
	UserID       string
	Version      int
}

func (a *Address) Table() string      { return TableAddresses }
func (a *Address) PrimaryKey() string { return a.ID }

func (a *Address) Columns() []string {
	return []string{
		"id", "address_line1", "address_line2", "address_line3", "hometown", "zip_code",
		"state", "district", "country", "address_type", "user_id", "version",
	}
}

func (a *Address) Values() []any {
	return []any{
		a.ID, a.AddressLine1, a.AddressLine2, a.AddressLine3, a.Hometown, a.ZipCode,
		a.State, a.District, a.Country, a.AddressType, a.UserID, a.Version,
	}
}

// Link is a social media profile link.
type Link struct {
	ID        string
	LinkName  string
	LinkType  string
	LinkValue string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

func (l *Link) Table() string      { return TableLinks }
func (l *Link) PrimaryKey() string { return l.ID }

func (l *Link) Columns() []string {
	return []string{"id", "link_name", "link_type", "link_value", "user_id", "created_at", "updated_at", "version"}
}

func (l *Link) Values() []any {
	return []any{l.ID, l.LinkName, l.LinkType, l.LinkValue, l.UserID, l.CreatedAt, l.UpdatedAt, l.Version}
}
