package validation

import (
	"strings"
	"testing"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() models.EventForm {
	start := time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	return models.EventForm{
		Title:         "Jazz Night",
		Description:   "An evening of jazz",
		Location:      "Blue Note",
		ImageURL:      "https://img.example/jazz.png",
		StartDateTime: start,
		EndDateTime:   start.Add(3 * time.Hour),
		CategoryID:    "c1",
		Price:         "25.50",
		URL:           "https://example.com/jazz",
	}
}

func TestEventFormValid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(validForm()))

	free := validForm()
	free.IsFree = true
	free.Price = ""
	assert.NoError(t, v.Struct(free), "free events need no price")
}

func TestEventFormInvalid(t *testing.T) {
	v := New()
	tests := []struct {
		name    string
		mutate  func(f *models.EventForm)
		message string
	}{
		{"short title", func(f *models.EventForm) { f.Title = "ab" }, "title must be at least 3 characters"},
		{"long description", func(f *models.EventForm) { f.Description = strings.Repeat("x", 401) }, "description must be at most 400 characters"},
		{"short location", func(f *models.EventForm) { f.Location = "x" }, "location must be at least 3 characters"},
		{"missing image", func(f *models.EventForm) { f.ImageURL = "" }, "imageUrl is required"},
		{"bad url", func(f *models.EventForm) { f.URL = "not a url" }, "url must be a valid URL"},
		{"missing price", func(f *models.EventForm) { f.Price = "" }, "price is required"},
		{"non numeric price", func(f *models.EventForm) { f.Price = "ten" }, "price must be a non-negative amount"},
		{"negative price", func(f *models.EventForm) { f.Price = "-5" }, "price must be a non-negative amount"},
		{"infinite price", func(f *models.EventForm) { f.Price = "Inf" }, "price must be a non-negative amount"},
		{"ends before start", func(f *models.EventForm) { f.EndDateTime = f.StartDateTime.Add(-time.Hour) }, "endDateTime must not be before startDateTime"},
		{"missing category", func(f *models.EventForm) { f.CategoryID = "" }, "categoryId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := v.Struct(form)
			require.Error(t, err)
			assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
