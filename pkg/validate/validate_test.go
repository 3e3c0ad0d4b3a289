package validate

import (
	"errors"
	"testing"

	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
)

type windowInput struct {
	WindowType string  `json:"window_type" validate:"required,window_type"`
	StartTime  string  `json:"start_time" validate:"required,hhmm"`
	EndTime    *string `json:"end_time" validate:"omitempty,hhmm"`
	Buffer     int     `json:"buffer_minutes" validate:"min=0,max=240"`
}

func TestStruct(t *testing.T) {
	bad := "25:00"
	good := "10:00"

	tests := []struct {
		name       string
		in         windowInput
		wantFields map[string]string
	}{
		{"valid", windowInput{WindowType: "recurring", StartTime: "09:00", EndTime: &good}, nil},
		{"bad clock", windowInput{WindowType: "recurring", StartTime: "9am"}, map[string]string{"start_time": "hhmm"}},
		{"bad optional clock", windowInput{WindowType: "one_time", StartTime: "09:00", EndTime: &bad}, map[string]string{"end_time": "hhmm"}},
		{"unknown type", windowInput{WindowType: "weekly", StartTime: "09:00"}, map[string]string{"window_type": "window_type"}},
		{"buffer", windowInput{WindowType: "exception", StartTime: "09:00", Buffer: 500}, map[string]string{"buffer_minutes": "max=240"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Struct() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Struct() error = %v, want validation error", err)
			}
			fields, _ := apperr.MetadataOf(err)["fields"].(map[string]string)
			for k, v := range tt.wantFields {
				if fields[k] != v {
					t.Errorf("fields[%q] = %q, want %q (all: %v)", k, fields[k], v, fields)
				}
			}
		})
	}
}
