package resource

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestGet(t *testing.T) {
	res, err := Get("  Invoices ")
	require.NoError(t, err)
	assert.Equal(t, "invoices", res.Path)
	assert.Equal(t, []string{"number", "customer", "status"}, res.SearchableFields)

	_, err = Get("lol")
	assert.Equal(t, ErrUnknown, errors.Cause(err))
}

func TestAll(t *testing.T) {
	all := All()
	assert.Len(t, all, len(Names()))
	for _, res := range all {
		assert.NotEmpty(t, res.SearchableFields, res.Name)
		assert.NotEmpty(t, res.Columns, res.Name)
		assert.NotNil(t, res.newForm, res.Name)
	}
	all[0].Name = "mutated"
	assert.Equal(t, Users, All()[0].Name)
}

func TestResource_Clean(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name       string
		resource   string
		rec        listing.Record
		want       listing.Record
		wantFields []string
	}{
		{
			name:     "user cleaned",
			resource: Users,
			rec:      listing.Record{"id": 3, "name": "  Amy ", "email": " AMY@Test.cd", "roles": []string{RoleTeacher}, "extra": "dropped"},
			want:     listing.Record{"id": 3, "name": "Amy", "username": "", "email": "amy@test.cd", "roles": []interface{}{RoleTeacher}},
		},
		{
			name:       "user without username nor email",
			resource:   Users,
			rec:        listing.Record{"name": "Amy"},
			wantFields: []string{"username", "email"},
		},
		{
			name:       "user with unknown role",
			resource:   Users,
			rec:        listing.Record{"name": "Amy", "email": "amy@test.cd", "roles": []string{"lol"}},
			wantFields: []string{"roles"},
		},
		{
			name:       "user with bad username",
			resource:   Users,
			rec:        listing.Record{"name": "Amy", "username": "a-b-c-d-e"},
			wantFields: []string{"username"},
		},
		{
			name:     "invoice",
			resource: Invoices,
			rec:      listing.Record{"number": "INV001", "customer": "Acme", "amount": 120.5, "currency": "usd", "status": "Paid"},
			want:     listing.Record{"number": "INV001", "customer": "Acme", "amount": 120.5, "currency": "USD", "status": "paid"},
		},
		{
			name:       "invoice invalid",
			resource:   Invoices,
			rec:        listing.Record{"number": "INV 001!", "amount": 0, "currency": "dollars", "status": "lost"},
			wantFields: []string{"number", "customer", "amount", "currency", "status"},
		},
		{
			name:       "customer phone",
			resource:   Customers,
			rec:        listing.Record{"name": "Acme", "email": "hi@acme.cd", "phone": "abc", "status": "lead"},
			wantFields: []string{"phone"},
		},
		{
			name:     "customer ok",
			resource: Customers,
			rec:      listing.Record{"name": "Acme", "email": "hi@acme.cd", "phone": "+243 81 000 0000", "status": "lead"},
			want:     listing.Record{"name": "Acme", "email": "hi@acme.cd", "phone": "+243810000000", "company": "", "status": "lead"},
		},
		{
			name:       "project blank owner",
			resource:   Projects,
			rec:        listing.Record{"name": "LMS", "owner": "   ", "status": "active"},
			wantFields: []string{"owner"},
		},
		{
			name:       "ticket",
			resource:   Tickets,
			rec:        listing.Record{"subject": "Help", "status": "open", "priority": "urgent"},
			wantFields: []string{"priority"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Get(tt.resource)
			require.NoError(t, err)

			got, err := res.Clean(validate, tt.rec)
			if tt.wantFields != nil {
				require.Error(t, err)
				vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
				require.True(t, ok, "want validator.ValidationErrors, got %T", err)
				fields := make([]string, 0, len(vErrs))
				for _, vErr := range vErrs {
					fields = append(fields, vErr.Field())
				}
				assert.ElementsMatch(t, tt.wantFields, fields)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResource_Clean_typeMismatch(t *testing.T) {
	res, err := Get(Services)
	require.NoError(t, err)

	_, err = res.Clean(newValidator(), listing.Record{"name": "Tutoring", "price": "cheap"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, map[string]string{"price": "invalid value, expected float64"}, vErr.FieldMap())
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 11, MaxRolePriority([]string{RoleStudent, RoleTeacher}))
	assert.Equal(t, 30, MaxRolePriority(AllRoles))
	assert.True(t, IsAdmin([]string{RoleStudent, RoleAdminPrincipal}))
	assert.False(t, IsAdmin([]string{RoleTeacher}))
}
