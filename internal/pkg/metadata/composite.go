package metadata

import (
	"fmt"
	"math"
)

// deriveComposite computes the values that combine fields from other sections.
func deriveComposite(r *Report) {
	c := &r.Composite
	f := r.File

	if f.ImageWidth > 0 && f.ImageHeight > 0 {
		c.ImageSize = fmt.Sprintf("%dx%d", f.ImageWidth, f.ImageHeight)
		c.Megapixels = round(float64(f.ImageWidth)*float64(f.ImageHeight)/1e6, 1)
	}

	e := r.EXIF
	if e.FNumber > 0 {
		c.Aperture = e.FNumber
	}
	if e.ExposureTime != NotAvailable && e.ExposureTime != "" {
		c.ShutterSpeed = e.ExposureTime
	}

	// EV at ISO 100: log2(N^2/t) - log2(ISO/100)
	if e.FNumber > 0 && e.exposureSeconds > 0 {
		lv := math.Log2(e.FNumber * e.FNumber / e.exposureSeconds)
		if e.ISO > 0 {
			lv -= math.Log2(float64(e.ISO) / 100)
		}
		c.LightValue = round(lv, 1)
	}

	if r.GPS.present {
		c.GPSPosition = fmt.Sprintf("%.6f, %.6f", r.GPS.Latitude, r.GPS.Longitude)
	}
}
