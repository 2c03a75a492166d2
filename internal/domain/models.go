// Package domain defines the persistence models for the storefront back
// office: catalog entities, accounts, orders, settings, and the audit log.
// The same structs serve both storage backends — the GORM tags drive the
// relational schema and the JSON tags drive the file-snapshot document — so
// a record written by one backend is readable by the other (and by the
// migration tool).
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User roles. Stored as plain strings so legacy snapshots load unchanged.
const (
	RoleMember     = "Member"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "Super Admin"
)

// Account statuses.
const (
	StatusActive = "Active"
)

// Order statuses. Orders are immutable after placement; the status is set at
// creation time.
const (
	OrderPending   = "Pending"
	OrderCompleted = "Completed"
)

// Category groups products. Deleting a category cascades to its products.
//
// Fields:
//   - ID: numeric primary key, immutable once assigned.
//   - Name / Description / ImageURL: display metadata.
type Category struct {
	ID          int64  `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name"        gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`
	ImageURL    string `json:"image_url"   gorm:"type:text"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Product is a purchasable item. Stock must never go negative; it is
// decremented only by order placement or an explicit update. The Features and
// SupportedMaps lists are persisted as serialized text (see StringList) in
// both backends.
type Product struct {
	ID            int64           `json:"id"             gorm:"primaryKey;autoIncrement"`
	CategoryID    int64           `json:"category_id"    gorm:"not null;index:idx_products_category"`
	Name          string          `json:"name"           gorm:"type:varchar(255);not null"`
	Price         decimal.Decimal `json:"price"          gorm:"type:decimal(10,2);not null"`
	Stock         int             `json:"stock"          gorm:"not null;default:0;check:stock >= 0"`
	Description   string          `json:"description"    gorm:"type:text"`
	ImageURL      string          `json:"image_url"      gorm:"type:text"`
	Features      StringList      `json:"features"       gorm:"type:text"`
	SupportedMaps StringList      `json:"supported_maps" gorm:"type:text"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// User is an account. Usernames are unique case-insensitively. The credential
// is stored only as a bcrypt hash; the omitempty tag lets sanitized copies
// (hash cleared) serialize without the field, so it never reaches API callers.
//
// LegacyPassword captures the plaintext "password" key found in snapshots
// written before credential hashing was unified. It is never persisted by this
// codebase; loading a legacy document hashes it and clears it.
type User struct {
	ID             int64     `json:"id"                      gorm:"primaryKey;autoIncrement"`
	Username       string    `json:"username"                gorm:"type:varchar(64);not null;uniqueIndex"`
	PasswordHash   string    `json:"password_hash,omitempty" gorm:"type:varchar(255)"`
	Role           string    `json:"role"                    gorm:"type:varchar(32);not null;default:'Member'"`
	Status         string    `json:"status"                  gorm:"type:varchar(32);not null;default:'Active'"`
	LastLogin      Timestamp `json:"last_login"              gorm:"type:datetime"`
	CreatedAt      time.Time `json:"created_at"`
	LegacyPassword string    `json:"password,omitempty"      gorm:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Sanitized returns a copy safe to hand to callers: credential material is
// cleared, and the omitempty tags drop the fields from JSON output.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.LegacyPassword = ""
	return u
}

// Order records a purchase. Price is a snapshot taken at placement time and
// is never re-derived from the product. Orders are immutable once created.
type Order struct {
	ID        int64           `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    int64           `json:"user_id"    gorm:"not null;index"`
	ProductID int64           `json:"product_id" gorm:"not null;index"`
	Price     decimal.Decimal `json:"price"      gorm:"type:decimal(10,2);not null"`
	Status    string          `json:"status"     gorm:"type:varchar(32);not null;default:'Completed'"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Setting is one key/value pair; last write wins per key.
type Setting struct {
	Key   string `json:"key"   gorm:"primaryKey;type:varchar(128)"`
	Value string `json:"value" gorm:"type:text"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }

// LogEntry is one append-only audit record. Entries are never updated or
// deleted; retrieval order is newest first by id. Actor maps to the legacy
// "user" key in snapshots and the user_id column in the relational schema.
type LogEntry struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	Action    string    `json:"action"    gorm:"type:varchar(128);not null"`
	Details   string    `json:"details"   gorm:"type:text"`
	Actor     string    `json:"user"      gorm:"column:user_id;type:varchar(64)"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

// TableName returns the database table name for LogEntry.
func (LogEntry) TableName() string { return "logs" }

// StringList is an ordered list of strings persisted as serialized JSON text,
// the representation both the snapshot document and the products table
// inherited from the legacy layout (a string containing a JSON array). It
// decodes from either that text form or a plain JSON array, and round-trips
// the sequence in order.
type StringList []string

// MarshalJSON encodes the list as a JSON string containing a JSON array,
// matching the legacy snapshot representation.
func (l StringList) MarshalJSON() ([]byte, error) {
	items := []string(l)
	if items == nil {
		items = []string{}
	}
	inner, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

// UnmarshalJSON accepts both the serialized-text form and a plain array.
func (l *StringList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return l.decodeText(s)
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = items
	return nil
}

// Value serializes the list for database storage.
func (l StringList) Value() (driver.Value, error) {
	items := []string(l)
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the serialized text column back into the list.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		return l.decodeText(v)
	case []byte:
		return l.decodeText(string(v))
	default:
		return fmt.Errorf("string list: cannot scan %T", src)
	}
}

// GormDataType maps StringList to a text column.
func (StringList) GormDataType() string { return "text" }

func (l *StringList) decodeText(s string) error {
	if strings.TrimSpace(s) == "" {
		*l = StringList{}
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return fmt.Errorf("string list %q: %w", s, err)
	}
	*l = items
	return nil
}

// Timestamp is a time value that survives the legacy snapshot encodings: old
// documents store last-login either as an RFC 3339 string or the literal "-"
// for accounts that never signed in. The zero value means "never".
type Timestamp struct {
	time.Time
}

// MarshalJSON writes RFC 3339, or the legacy "-" marker for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`"-"`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts RFC 3339 strings, the "-" marker, "" and null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	return t.parse(s)
}

// Value stores NULL for the zero value, the time otherwise.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time, nil
}

// Scan reads a time column that may come back as a time, string, or bytes
// depending on the driver.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("timestamp: cannot scan %T", src)
	}
}

// GormDataType maps Timestamp to a datetime column.
func (Timestamp) GormDataType() string { return "datetime" }

// timeLayouts covers RFC 3339 plus the formats SQLite drivers hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized value %q", s)
}
