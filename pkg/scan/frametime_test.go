package scan

import (
	"math"
	"testing"
)

func TestResolveVendor(t *testing.T) {
	tests := []struct {
		manufacturer string
		want         Vendor
	}{
		{"Roper Scientific", VendorRoper},
		{"ROPER", VendorRoper},
		{"Princeton Instruments", VendorRoper},
		{"Point Grey Research", VendorPointGrey},
		{"PointGrey", VendorPointGrey},
		{"FLIR Systems", VendorPointGrey},
		{"flir", VendorPointGrey},
		{"Simulated Detector Works", VendorGeneric},
		{"ADSC", VendorGeneric},
		{"", VendorGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.manufacturer, func(t *testing.T) {
			if got := ResolveVendor(tt.manufacturer); got != tt.want {
				t.Errorf("ResolveVendor(%q) = %s, want %s", tt.manufacturer, got, tt.want)
			}
		})
	}
}

func TestVendorFrameTime(t *testing.T) {
	tests := []struct {
		name    string
		vendor  Vendor
		profile CameraProfile
		want    float64
	}{
		{
			name:   "roper with resolution",
			vendor: VendorRoper,
			profile: CameraProfile{
				Exposure: 0.5,
				ADCSpeed: 2,
				SizeX:    1000,
				SizeY:    1000,
			},
			// exposure + pixels/rate + fixed overhead
			want: 0.5 + 1e6/2e6 + 1.0,
		},
		{
			name:   "roper without resolution falls back to table",
			vendor: VendorRoper,
			profile: CameraProfile{
				Exposure: 0.5,
				ADCSpeed: 1,
			},
			want: 0.5 + 1.05 + 1.0,
		},
		{
			name:   "roper with out of range index",
			vendor: VendorRoper,
			profile: CameraProfile{
				Exposure: 0.1,
				ADCSpeed: 7,
			},
			want: 0.1 + 10.5 + 1.0,
		},
		{
			name:    "point grey adds fixed overhead",
			vendor:  VendorPointGrey,
			profile: CameraProfile{Exposure: 0.25},
			want:    0.65,
		},
		{
			name:    "generic scales exposure",
			vendor:  VendorGeneric,
			profile: CameraProfile{Exposure: 2.0},
			want:    2.6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vendor.FrameTime(tt.profile); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("FrameTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
