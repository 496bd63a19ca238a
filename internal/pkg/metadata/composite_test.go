package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveComposite(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.File.ImageWidth, r.File.ImageHeight = 6000, 4000
	r.EXIF.FNumber = 8
	r.EXIF.ExposureTime = "1/125"
	r.EXIF.exposureSeconds = 1.0 / 125
	r.EXIF.ISO = 100
	r.GPS.Latitude, r.GPS.Longitude, r.GPS.present = 48.858370, 2.294481, true

	deriveComposite(r)

	assert.Equal(t, "6000x4000", r.Composite.ImageSize)
	assert.Equal(t, 24.0, r.Composite.Megapixels)
	assert.Equal(t, 8.0, r.Composite.Aperture)
	assert.Equal(t, "1/125", r.Composite.ShutterSpeed)
	// log2(64*125) = 12.97
	assert.InDelta(t, 13.0, r.Composite.LightValue, 0.05)
	assert.Equal(t, "48.858370, 2.294481", r.Composite.GPSPosition)
}

func TestDeriveComposite_KeepsPlaceholders(t *testing.T) {
	t.Parallel()

	r := NewReport()
	deriveComposite(r)

	assert.Equal(t, NotAvailable, r.Composite.ImageSize)
	assert.Equal(t, NotAvailable, r.Composite.ShutterSpeed)
	assert.Equal(t, NotAvailable, r.Composite.GPSPosition)
	assert.Zero(t, r.Composite.LightValue)
}

func TestDeriveComposite_ISOAdjustsLightValue(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.EXIF.FNumber = 4
	r.EXIF.exposureSeconds = 1
	r.EXIF.ISO = 400

	deriveComposite(r)
	// log2(16) - log2(4)
	assert.InDelta(t, 2.0, r.Composite.LightValue, 0.001)
}
