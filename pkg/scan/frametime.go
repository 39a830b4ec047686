package scan

import "strings"

// Vendor selects the frame time computation for a camera family. It is
// resolved once from the manufacturer string when the instrument is
// constructed.
type Vendor int

const (
	VendorGeneric Vendor = iota
	VendorRoper
	VendorPointGrey
)

func (v Vendor) String() string {
	switch v {
	case VendorRoper:
		return "Roper"
	case VendorPointGrey:
		return "PointGrey"
	default:
		return "Generic"
	}
}

// adcRates maps the Roper ADC speed index to pixel rates in Hz.
var adcRates = [4]float64{100e3, 1e6, 2e6, 4e6}

// roperReadout is the measured full-frame readout time in seconds per
// ADC speed index, used when the sensor resolution is not available.
var roperReadout = [4]float64{10.5, 1.05, 0.52, 0.26}

// ResolveVendor matches a manufacturer string to a vendor family with
// a case-insensitive substring test.
func ResolveVendor(manufacturer string) Vendor {
	m := strings.ToLower(manufacturer)
	switch {
	case strings.Contains(m, "roper") || strings.Contains(m, "princeton"):
		return VendorRoper
	case strings.Contains(m, "point grey") || strings.Contains(m, "pointgrey") || strings.Contains(m, "flir"):
		return VendorPointGrey
	default:
		return VendorGeneric
	}
}

// CameraProfile holds the camera settings that determine the time to
// produce one frame.
type CameraProfile struct {
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	Exposure     float64 `json:"exposure"`
	ADCSpeed     int     `json:"adcSpeed"`
	SizeX        int     `json:"sizeX"`
	SizeY        int     `json:"sizeY"`
}

// FrameTime estimates seconds per frame for a camera of this vendor
// family with the given settings. The estimate feeds ETA reporting and
// sizes bounded acquisition waits; it never gates loop correctness.
func (v Vendor) FrameTime(p CameraProfile) float64 {
	switch v {
	case VendorRoper:
		// Readout plus a fixed empirically determined overhead.
		return p.Exposure + roperReadoutTime(p) + 1.0
	case VendorPointGrey:
		return p.Exposure + 0.4
	default:
		return p.Exposure * 1.3
	}
}

func roperReadoutTime(p CameraProfile) float64 {
	idx := p.ADCSpeed
	if idx < 0 || idx >= len(adcRates) {
		idx = 0
	}

	pixels := float64(p.SizeX) * float64(p.SizeY)
	if pixels <= 0 {
		return roperReadout[idx]
	}

	return pixels / adcRates[idx]
}
