package handlers

import (
	"strconv"

	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxForms caps the number of forms one formset submission may carry.
const MaxForms = 1000

var totalFormsField = data.FormPrefix + "-TOTAL_FORMS"

// bindFormset reads the field value formset from a form encoded body.
func bindFormset(c *gin.Context) ([]data.FieldValueForm, error) {
	total, err := strconv.Atoi(c.PostForm(totalFormsField))
	if err != nil || total < 0 {
		return nil, errors.Invalid.Explain("ManagementForm data is missing or has been tampered with").
			WithField("required", totalFormsField, "This field is required.")
	}
	if total > MaxForms {
		total = MaxForms
	}

	invalid := errors.Invalid.Explain("please correct the errors below")
	failed := false

	forms := make([]data.FieldValueForm, total)
	for i := range forms {
		form := &forms[i]
		get := func(name string) string {
			return c.PostForm(data.FormField(i, name))
		}

		if raw := get("id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				invalid = invalid.WithField("invalid_choice", data.FormField(i, "id"),
					"Select a valid choice. That choice is not one of the available choices.")
				failed = true
			} else {
				form.ID = &id
			}
		}
		form.Field = get("field")
		form.Label = get("label")
		form.Value = get("value")
		form.Type = get("type")
		form.Hidden = checked(get("hidden"))
		form.Language = get("language")
		form.Delete = checked(get("DELETE"))

		if raw := get("ORDER"); raw != "" {
			order, err := strconv.Atoi(raw)
			if err != nil {
				invalid = invalid.WithField("invalid", data.FormField(i, "ORDER"), "Enter a whole number.")
				failed = true
			} else {
				form.Order = &order
			}
		}
	}

	if failed {
		return forms, invalid
	}
	return forms, nil
}

// checked reads an HTML checkbox.
func checked(value string) bool {
	switch value {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// initialForms renders the editable values as forms followed by data.ExtraForms blank ones.
func initialForms(values []models.FieldValue) []data.FieldValueForm {
	forms := make([]data.FieldValueForm, 0, len(values)+data.ExtraForms)
	for i := range values {
		v := values[i]
		order := i + 1
		forms = append(forms, data.FieldValueForm{
			ID:       &v.ID,
			Field:    v.FieldID.String(),
			Label:    v.Label,
			Value:    v.Value,
			Type:     v.Type,
			Hidden:   v.Hidden,
			Language: v.Language,
			Order:    &order,
		})
	}
	for i := 0; i < data.ExtraForms; i++ {
		forms = append(forms, data.FieldValueForm{Type: models.ValueTypeText})
	}
	return forms
}
