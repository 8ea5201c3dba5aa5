// Package fanout derives the records owned by a user profile (roles, phone
// numbers, addresses and social links) from its source document.
package fanout

import (
	"strings"
	"time"

	"doc-migrator/internal/model"
	"doc-migrator/internal/source"
	"doc-migrator/internal/transform"

	"github.com/google/uuid"
)

// Set groups the derived records of one user.
type Set struct {
	Roles     []*model.UserRole
	Phones    []*model.PhoneNumber
	Addresses []*model.Address
	Links     []*model.Link
}

// Records flattens the set in insert order.
func (s Set) Records() []model.Record {
	out := make([]model.Record, 0, s.Len())
	for _, r := range s.Roles {
		out = append(out, r)
	}
	for _, p := range s.Phones {
		out = append(out, p)
	}
	for _, a := range s.Addresses {
		out = append(out, a)
	}
	for _, l := range s.Links {
		out = append(out, l)
	}
	return out
}

// Len returns the number of derived records.
func (s Set) Len() int {
	return len(s.Roles) + len(s.Phones) + len(s.Addresses) + len(s.Links)
}

// Mapper builds derived records. The zero value uses the wall clock and
// random UUIDs.
type Mapper struct {
	Now   func() time.Time
	NewID func() string
}

func (m *Mapper) now() time.Time {
	if m == nil || m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func (m *Mapper) newID() string {
	if m == nil || m.NewID == nil {
		return uuid.NewString()
	}
	return m.NewID()
}

// Build derives every record owned by userID.
func (m *Mapper) Build(doc source.Document, userID string) Set {
	return Set{
		Roles:     m.Roles(doc, userID),
		Phones:    m.PhoneNumbers(doc, userID),
		Addresses: m.Addresses(doc, userID),
		Links:     m.Links(doc, userID),
	}
}

// Roles pairs roleCodes with roleNames by position. Either field may be a
// comma separated string or an array. A missing name falls back to the code
// and the first role is the default.
func (m *Mapper) Roles(doc source.Document, userID string) []*model.UserRole {
	codes := splitList(doc.Get("roleCodes"))
	names := splitList(doc.Get("roleNames"))

	createdAt := m.now()
	if t := transform.ParseDate(doc.Get("createdOn")); t != nil {
		createdAt = *t
	}
	createdBy := optString(doc, "createdBy")

	var roles []*model.UserRole
	for i, code := range codes {
		if code == "" {
			continue
		}
		name := code
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		roles = append(roles, &model.UserRole{
			ID:           m.newID(),
			RoleCode:     code,
			RoleName:     name,
			AuthRoleCode: code,
			IsDefault:    i == 0,
			UserID:       userID,
			CreatedAt:    createdAt,
			CreatedBy:    createdBy,
		})
	}
	return roles
}

// PhoneNumbers returns the primary phone (phoneNumber, else contactNumber)
// and the alternate phone when it differs from phoneNumber.
func (m *Mapper) PhoneNumbers(doc source.Document, userID string) []*model.PhoneNumber {
	var phones []*model.PhoneNumber
	dialCode := optString(doc, "dialCode")

	primary := doc.String("phoneNumber")
	if primary == "" {
		primary = doc.String("contactNumber")
	}
	if primary != "" {
		phones = append(phones, &model.PhoneNumber{
			ID:          m.newID(),
			PhoneCode:   dialCode,
			PhoneNumber: primary,
			Primary:     true,
			UserID:      userID,
		})
	}

	if alt := doc.String("altPhoneNumber"); alt != "" && alt != doc.String("phoneNumber") {
		phones = append(phones, &model.PhoneNumber{
			ID:          m.newID(),
			PhoneCode:   dialCode,
			PhoneNumber: alt,
			UserID:      userID,
		})
	}
	return phones
}

// addressFields names the source fields of one address kind.
type addressFields struct {
	line1, line2, line3, hometown, state, district, country string
}

var (
	presentFields   = addressFields{"addressLine1", "addressLine2", "addressLine3", "hometown", "state", "district", "country"}
	permanentFields = addressFields{"permanentAddressLine1", "permanentAddressLine2", "permanentAddressLine3", "permanentHometown", "permanentState", "permanentDistrict", "permanentCountry"}
)

// Addresses returns the present address when any locality field is set and
// the permanent address when it is not flagged identical to the present one.
func (m *Mapper) Addresses(doc source.Document, userID string) []*model.Address {
	var out []*model.Address
	if hasLocality(doc, presentFields) {
		out = append(out, m.address(doc, presentFields, model.AddressPresent, userID))
	}
	if !doc.Truthy("presentPermanentSame") && hasLocality(doc, permanentFields) {
		out = append(out, m.address(doc, permanentFields, model.AddressPermanent, userID))
	}
	return out
}

func hasLocality(doc source.Document, f addressFields) bool {
	return doc.String(f.line1) != "" || doc.String(f.hometown) != "" || doc.String(f.district) != ""
}

func (m *Mapper) address(doc source.Document, f addressFields, kind, userID string) *model.Address {
	return &model.Address{
		ID:           m.newID(),
		AddressLine1: optString(doc, f.line1),
		AddressLine2: optString(doc, f.line2),
		AddressLine3: optString(doc, f.line3),
		Hometown:     optString(doc, f.hometown),
		State:        optString(doc, f.state),
		District:     optString(doc, f.district),
		Country:      optString(doc, f.country),
		AddressType:  kind,
		UserID:       userID,
	}
}

// platform describes one social link field.
type platform struct {
	field, name, kind string
}

var platforms = []platform{
	{"facebookLink", "Facebook", "facebook"},
	{"instagramLink", "Instagram", "instagram"},
	{"linkedInLink", "LinkedIn", "linkedin"},
	{"twitterLink", "Twitter", "twitter"},
	{"whatsappLink", "WhatsApp", "whatsapp"},
}

// Links returns one record per non-empty platform field.
func (m *Mapper) Links(doc source.Document, userID string) []*model.Link {
	var links []*model.Link
	now := m.now()
	for _, p := range platforms {
		value := doc.String(p.field)
		if value == "" {
			continue
		}
		links = append(links, &model.Link{
			ID:        m.newID(),
			LinkName:  p.name,
			LinkType:  p.kind,
			LinkValue: value,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return links
}

// splitList accepts a comma separated string or an array of strings.
func splitList(v any) []string {
	switch val := v.(type) {
	case string:
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			if s, ok := item.(string); ok {
				out[i] = s
			}
		}
		return out
	default:
		return nil
	}
}

func optString(doc source.Document, key string) *string {
	if s := doc.String(key); s != "" {
		return &s
	}
	return nil
}
