package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battwatch/battwatch/pkg/powerinfo"
)

func TestRenderQuery(t *testing.T) {
	info := powerinfo.NewInfo(powerinfo.Device{Vendor: "SMP", Model: "L19M3PF1"},
		powerinfo.StateDischarging, 42.25, 7.125, 23.5, 11.83)

	tests := []struct {
		name        string
		summary     string
		body        string
		wantSummary string
		wantBody    string
		wantErr     bool
	}{
		{
			name:        "defaults",
			summary:     "{{.Percentage}}% {{.State}}",
			body:        "{{.Sign}}{{.Power}} W  {{.Energy}} Wh  {{.Voltage}} V",
			wantSummary: "42.2% Discharging",
			wantBody:    "-7.12 W  23.5 Wh  11.83 V",
		},
		{
			name:        "device fields",
			summary:     "{{.Vendor}} {{.Model}}",
			body:        "",
			wantSummary: "SMP L19M3PF1",
			wantBody:    "",
		},
		{
			name:    "unknown field",
			summary: "{{.Capacity}}",
			wantErr: true,
		},
		{
			name:    "broken template",
			summary: "ok",
			body:    "{{.Power",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, b, err := renderQuery(tt.summary, tt.body, info)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSummary, s)
			assert.Equal(t, tt.wantBody, b)
		})
	}
}
