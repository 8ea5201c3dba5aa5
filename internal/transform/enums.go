package transform

// Enum is a closed set of target values with a fallback for anything the
// source holds that is not in the set.
type Enum struct {
	name     string
	values   map[string]struct{}
	fallback string
}

func newEnum(name, fallback string, values ...string) Enum {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Enum{name: name, values: set, fallback: fallback}
}

// Map returns v if it is a member of the set, else the fallback.
func (e Enum) Map(v string) string {
	if _, ok := e.values[v]; ok {
		return v
	}
	return e.fallback
}

// Default returns the fallback value.
func (e Enum) Default() string { return e.fallback }

// Name identifies the enum in logs.
func (e Enum) Name() string { return e.name }

var (
	AccountType = newEnum("account type", "GENERAL",
		"PRINCIPAL", "GENERAL", "DONATION", "PUBLIC_DONATION")
	AccountStatus = newEnum("account status", "ACTIVE",
		"ACTIVE", "INACTIVE", "BLOCKED")
	DonationStatus = newEnum("donation status", "RAISED",
		"RAISED", "PAID", "PENDING", "PAYMENT_FAILED", "PAY_LATER", "CANCELLED", "UPDATE_MISTAKE")
	DonationType = newEnum("donation type", "ONETIME",
		"REGULAR", "ONETIME")
	TransactionStatus = newEnum("transaction status", "COMPLETED",
		"PENDING", "COMPLETED", "FAILED", "REVERSED")
	TransactionType = newEnum("transaction type", "TRANSFER",
		"DONATION", "EXPENSE", "EARNING", "TRANSFER")
	ExpenseStatus = newEnum("expense status", "PENDING",
		"PENDING", "APPROVED", "PAID", "REJECTED", "SETTLED")
)

// defaultUserStatus is used when a profile carries no status.
const defaultUserStatus = "ACTIVE"
