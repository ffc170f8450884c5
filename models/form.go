package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// FormType is the purpose of a form
type FormType string

const (
	FormTypeLeadCapture FormType = "lead_capture"
	FormTypeContact     FormType = "contact"
	FormTypeNewsletter  FormType = "newsletter"
)

// Valid checks if the form type is known
func (t FormType) Valid() bool {
	switch t {
	case FormTypeLeadCapture, FormTypeContact, FormTypeNewsletter:
		return true
	default:
		return false
	}
}

// FieldType is the input widget of a form field
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
)

// IsChoice reports whether the field type takes a list of options
func (t FieldType) IsChoice() bool {
	return t == FieldTypeSelect || t == FieldTypeCheckbox || t == FieldTypeRadio
}

// Valid checks if the field type is known
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypePhone, FieldTypeTextarea:
		return true
	default:
		return t.IsChoice()
	}
}

// FormField is one input of a form
type FormField struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
	Order       int       `json:"order"`
}

// FormFields is stored as a JSON array
type FormFields []FormField

// Value implements the driver.Valuer interface for FormFields
func (f FormFields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for FormFields
func (f *FormFields) Scan(value any) error {
	if value == nil {
		*f = FormFields{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FormFields", value)
	}

	return json.Unmarshal(bytes, f)
}

// Form is a submittable lead-capture definition
type Form struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_forms_uuid" json:"uuid"`
	Name          string         `gorm:"type:varchar(200);not null" json:"name"`
	Description   string         `gorm:"type:text;not null;default:''" json:"description"`
	FormType      FormType       `gorm:"type:varchar(50);not null;default:'lead_capture'" json:"form_type"`
	Fields        FormFields     `gorm:"type:jsonb;not null" json:"fields"`
	StylingConfig JSONMap        `gorm:"type:jsonb" json:"styling_config"`
	NotifyEmails  pq.StringArray `gorm:"type:text" json:"notify_emails"`
	IsActive      *bool          `gorm:"not null;default:true;index:idx_forms_is_active" json:"is_active"`
	CreatedBy     uint           `gorm:"not null;index:idx_forms_created_by" json:"created_by"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_forms_created_at" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`

	Creator *User `gorm:"foreignKey:CreatedBy;references:ID;constraint:OnDelete:RESTRICT" json:"creator,omitempty"`
}

func (Form) TableName() string { return "forms" }

// BeforeCreate assigns the public identifier
func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	if f.FormType == "" {
		f.FormType = FormTypeLeadCapture
	}
	return nil
}

// Active reports whether the form accepts submissions
func (f *Form) Active() bool {
	return f.IsActive == nil || *f.IsActive
}

// EmbedCode returns the iframe snippet pointing at the public embed route
func (f *Form) EmbedCode() string {
	return fmt.Sprintf(`<iframe src="/embed/%s/" width="100%%" height="600px" frameborder="0"></iframe>`, f.UUID.String())
}

// FormFilter represents filter criteria for form queries
type FormFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	IsActive  *bool
	CreatedBy *uint
	NameLike  *string
}
