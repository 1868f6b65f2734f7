package entity

import (
	"database/sql/driver"
	"strings"
)

// FieldRole is the meaning of a form field, assigned once when the form is configured.
// Registration reads roles only and never looks at labels.
type FieldRole string

const (
	FieldRoleNone  FieldRole = ""
	FieldRoleName  FieldRole = "name"
	FieldRoleEmail FieldRole = "email"
	FieldRolePhone FieldRole = "phone"
)

type FormField struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     string    `json:"type"`
	Required bool      `json:"required"`
	Role     FieldRole `json:"role,omitempty"`
}

type FormSchema struct {
	Fields []FormField `json:"fields"`
}

func (s *FormSchema) Scan(src any) error {
	return scanJSONB(src, s)
}

func (s FormSchema) Value() (driver.Value, error) {
	if s.Fields == nil {
		s.Fields = []FormField{}
	}
	return jsonbValue(s)
}

// FormResponses maps a form field id to the submitted value.
type FormResponses map[string]string

func (r *FormResponses) Scan(src any) error {
	return scanJSONB(src, r)
}

func (r FormResponses) Value() (driver.Value, error) {
	if r == nil {
		return jsonbValue(map[string]string{})
	}
	return jsonbValue(map[string]string(r))
}

type GuestDetails struct {
	Name  string
	Email string
	Phone string
}

// AssignFormRoles gives every role to at most one field.
// Roles set explicitly by the host are kept, the rest are inferred from field type and label.
func AssignFormRoles(schema FormSchema) FormSchema {
	taken := map[FieldRole]bool{}
	fields := make([]FormField, len(schema.Fields))
	copy(fields, schema.Fields)

	for _, f := range fields {
		if f.Role != FieldRoleNone {
			taken[f.Role] = true
		}
	}

	for i, f := range fields {
		if f.Role != FieldRoleNone {
			continue
		}

		role := inferRole(f)
		if role == FieldRoleNone || taken[role] {
			continue
		}

		fields[i].Role = role
		taken[role] = true
	}

	return FormSchema{Fields: fields}
}

func inferRole(f FormField) FieldRole {
	label := strings.ToLower(f.Label)
	fieldType := strings.ToLower(f.Type)

	switch {
	case fieldType == "email" || strings.Contains(label, "email") || strings.Contains(label, "e-mail"):
		return FieldRoleEmail
	case fieldType == "tel" || fieldType == "phone" || strings.Contains(label, "phone") || strings.Contains(label, "mobile"):
		return FieldRolePhone
	case strings.Contains(label, "name") && !strings.Contains(label, "company") && !strings.Contains(label, "organi"):
		return FieldRoleName
	}

	return FieldRoleNone
}

func (s FormSchema) fieldWithRole(role FieldRole) (FormField, bool) {
	for _, f := range s.Fields {
		if f.Role == role {
			return f, true
		}
	}

	return FormField{}, false
}

func (s FormSchema) Guest(responses FormResponses) GuestDetails {
	var guest GuestDetails

	if f, ok := s.fieldWithRole(FieldRoleName); ok {
		guest.Name = strings.TrimSpace(responses[f.ID])
	}
	if f, ok := s.fieldWithRole(FieldRoleEmail); ok {
		guest.Email = NormalizeEmail(responses[f.ID])
	}
	if f, ok := s.fieldWithRole(FieldRolePhone); ok {
		guest.Phone = strings.TrimSpace(responses[f.ID])
	}

	return guest
}

// MissingRequired returns labels of required fields without an answer.
func (s FormSchema) MissingRequired(responses FormResponses) []string {
	var missing []string
	for _, f := range s.Fields {
		if f.Required && strings.TrimSpace(responses[f.ID]) == "" {
			missing = append(missing, f.Label)
		}
	}

	return missing
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
