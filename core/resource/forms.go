package resource

import (
	"strings"

	"github.com/trezcool/masomo-dashboard/core"
)

type UserForm struct {
	Name     string   `json:"name" validate:"required"`
	Username string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Roles    []string `json:"roles" validate:"omitempty,allroles"`
	IsActive *bool    `json:"is_active,omitempty"`
}

func (f *UserForm) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Email = core.CleanString(f.Email, true /* lower */)
}

type EmployeeForm struct {
	Name       string `json:"name" validate:"required"`
	Role       string `json:"role" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department"`
}

func (f *EmployeeForm) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Role = core.CleanString(f.Role)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.Department = core.CleanString(f.Department)
}

type CustomerForm struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Company string `json:"company"`
	Status  string `json:"status" validate:"required,oneof=lead active churned"`
}

func (f *CustomerForm) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.Phone = strings.ReplaceAll(core.CleanString(f.Phone), " ", "")
	f.Company = core.CleanString(f.Company)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type ChannelForm struct {
	Name        string `json:"name" validate:"required,alphanum_"`
	Description string `json:"description" validate:"max=280"`
	IsPrivate   bool   `json:"is_private"`
}

func (f *ChannelForm) Clean() {
	f.Name = core.CleanString(f.Name, true /* lower */)
	f.Description = core.CleanString(f.Description)
}

type ProjectForm struct {
	Name   string `json:"name" validate:"required"`
	Owner  string `json:"owner" validate:"notblank"`
	Status string `json:"status" validate:"required,oneof=draft active archived"`
}

func (f *ProjectForm) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Owner = core.CleanString(f.Owner)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type QuizForm struct {
	Title       string `json:"title" validate:"required"`
	Channel     string `json:"channel"`
	Questions   int    `json:"questions" validate:"gte=0"`
	IsPublished bool   `json:"is_published"`
}

func (f *QuizForm) Clean() {
	f.Title = core.CleanString(f.Title)
	f.Channel = core.CleanString(f.Channel, true /* lower */)
}

type ServiceForm struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category"`
	Price    float64 `json:"price" validate:"gte=0"`
	IsActive bool    `json:"is_active"`
}

func (f *ServiceForm) Clean() {
	f.Name = core.CleanString(f.Name)
	f.Category = core.CleanString(f.Category)
}

type InvoiceForm struct {
	Number   string  `json:"number" validate:"required,alphanum_"`
	Customer string  `json:"customer" validate:"required"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
	Status   string  `json:"status" validate:"required,oneof=draft sent paid overdue"`
}

func (f *InvoiceForm) Clean() {
	f.Number = core.CleanString(f.Number)
	f.Customer = core.CleanString(f.Customer)
	f.Currency = strings.ToUpper(core.CleanString(f.Currency))
	f.Status = core.CleanString(f.Status, true /* lower */)
}

type TicketForm struct {
	Subject   string `json:"subject" validate:"required"`
	Requester string `json:"requester" validate:"omitempty,email"`
	Status    string `json:"status" validate:"required,oneof=open pending closed"`
	Priority  string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (f *TicketForm) Clean() {
	f.Subject = core.CleanString(f.Subject)
	f.Requester = core.CleanString(f.Requester, true /* lower */)
	f.Status = core.CleanString(f.Status, true /* lower */)
	f.Priority = core.CleanString(f.Priority, true /* lower */)
}

type SettingForm struct {
	Key   string `json:"key" validate:"required,alphanum_"`
	Value string `json:"value"`
	Group string `json:"group"`
}

func (f *SettingForm) Clean() {
	f.Key = core.CleanString(f.Key, true /* lower */)
	f.Group = core.CleanString(f.Group, true /* lower */)
}
