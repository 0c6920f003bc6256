package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationValidate(t *testing.T) {
	valid := Destination{Name: "Main PACS", AETitle: "PACS1", Host: "pacs.local", Port: 104}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Destination)
	}{
		{"missing name", func(d *Destination) { d.Name = "" }},
		{"missing ae title", func(d *Destination) { d.AETitle = "" }},
		{"ae title too long", func(d *Destination) { d.AETitle = strings.Repeat("A", 17) }},
		{"missing host", func(d *Destination) { d.Host = "" }},
		{"port zero", func(d *Destination) { d.Port = 0 }},
		{"port too high", func(d *Destination) { d.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			assert.Error(t, d.Validate())
		})
	}

	// 16 characters is the DICOM maximum and still valid.
	d := valid
	d.AETitle = strings.Repeat("A", 16)
	assert.NoError(t, d.Validate())
}
