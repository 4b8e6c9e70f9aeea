// Package resource describes the dashboard screens: which backend collection each one lists,
// how it is searched and how its create/update payloads are validated.
package resource

import (
	"encoding/json"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

// Names
const (
	Users     = "users"
	Employees = "employees"
	Customers = "customers"
	Channels  = "channels"
	Projects  = "projects"
	Quizzes   = "quizzes"
	Services  = "services"
	Invoices  = "invoices"
	Tickets   = "tickets"
	Settings  = "settings"
)

var ErrUnknown = errors.New("unknown resource")

// Form is the typed payload of a resource's create and update calls.
type Form interface {
	// Clean normalizes the form fields before validation.
	Clean()
}

type Resource struct {
	Name             string   `json:"name"`
	Title            string   `json:"title"`
	Path             string   `json:"path"`
	SearchableFields []string `json:"searchable_fields"`
	Columns          []string `json:"columns"`
	PageSize         int      `json:"page_size,omitempty"` // 0: the dashboard default
	DefaultSort      string   `json:"default_sort,omitempty"`

	newForm func() Form
}

var catalog = []Resource{
	{
		Name: Users, Title: "Users", Path: "users",
		SearchableFields: []string{"name", "username", "email"},
		Columns:          []string{"id", "name", "username", "email", "is_active"},
		newForm:          func() Form { return new(UserForm) },
	},
	{
		Name: Employees, Title: "Employees", Path: "employees",
		SearchableFields: []string{"name", "role", "email"},
		Columns:          []string{"id", "name", "role", "email", "department"},
		PageSize:         5,
		newForm:          func() Form { return new(EmployeeForm) },
	},
	{
		Name: Customers, Title: "Customers", Path: "customers",
		SearchableFields: []string{"name", "email", "company", "status"},
		Columns:          []string{"id", "name", "email", "company", "status"},
		PageSize:         8,
		newForm:          func() Form { return new(CustomerForm) },
	},
	{
		Name: Channels, Title: "Channels", Path: "channels",
		SearchableFields: []string{"name", "description"},
		Columns:          []string{"id", "name", "description", "is_private"},
		newForm:          func() Form { return new(ChannelForm) },
	},
	{
		Name: Projects, Title: "Projects", Path: "projects",
		SearchableFields: []string{"name", "owner", "status"},
		Columns:          []string{"id", "name", "owner", "status"},
		newForm:          func() Form { return new(ProjectForm) },
	},
	{
		Name: Quizzes, Title: "Quizzes", Path: "quizzes",
		SearchableFields: []string{"title", "channel"},
		Columns:          []string{"id", "title", "channel", "questions", "is_published"},
		newForm:          func() Form { return new(QuizForm) },
	},
	{
		Name: Services, Title: "Services", Path: "services",
		SearchableFields: []string{"name", "category"},
		Columns:          []string{"id", "name", "category", "price", "is_active"},
		newForm:          func() Form { return new(ServiceForm) },
	},
	{
		Name: Invoices, Title: "Invoices", Path: "invoices",
		SearchableFields: []string{"number", "customer", "status"},
		Columns:          []string{"id", "number", "customer", "amount", "currency", "status"},
		DefaultSort:      "number",
		newForm:          func() Form { return new(InvoiceForm) },
	},
	{
		Name: Tickets, Title: "Tickets", Path: "tickets",
		SearchableFields: []string{"subject", "requester", "status"},
		Columns:          []string{"id", "subject", "requester", "status", "priority"},
		newForm:          func() Form { return new(TicketForm) },
	},
	{
		Name: Settings, Title: "Settings", Path: "settings",
		SearchableFields: []string{"key", "group"},
		Columns:          []string{"id", "key", "value", "group"},
		PageSize:         20,
		DefaultSort:      "key",
		newForm:          func() Form { return new(SettingForm) },
	},
}

// All returns every resource, in menu order.
func All() []Resource {
	res := make([]Resource, len(catalog))
	copy(res, catalog)
	return res
}

// Names returns the sorted resource names.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, res := range catalog {
		names = append(names, res.Name)
	}
	sort.Strings(names)
	return names
}

func Get(name string) (Resource, error) {
	name = core.CleanString(name, true /* lower */)
	for _, res := range catalog {
		if res.Name == name {
			return res, nil
		}
	}
	return Resource{}, errors.Wrapf(ErrUnknown, "%q", name)
}

// Clean decodes `rec` into the resource form, normalizes and validates it,
// and returns the resulting record. The record id, if any, is kept.
func (res Resource) Clean(validate *validator.Validate, rec listing.Record) (listing.Record, error) {
	form := res.newForm()

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encoding record")
	}
	if err = json.Unmarshal(data, form); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: typeErr.Field,
				Error: "invalid value, expected " + typeErr.Type.String(),
			})
		}
		return nil, errors.Wrap(err, "decoding "+res.Name+" form")
	}

	form.Clean()
	if err = validate.Struct(form); err != nil {
		return nil, err
	}

	if data, err = json.Marshal(form); err != nil {
		return nil, errors.Wrap(err, "encoding "+res.Name+" form")
	}
	cleaned := make(listing.Record)
	if err = json.Unmarshal(data, &cleaned); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	if rec.HasID() {
		cleaned[listing.IDField] = rec[listing.IDField]
	}
	return cleaned, nil
}
