package metadata

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// lensModel is not exported by every goexif release.
const lensModel exif.FieldName = "LensModel"

// decodeEXIF fills the EXIF and GPS sections with goexif. It returns an error
// when the container carries no EXIF block goexif understands, which makes
// the caller fall back to the imagemeta walk. Non-critical decode errors,
// such as a broken maker note, keep the fields goexif did read.
func decodeEXIF(data []byte, r *Report) error {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return fmt.Errorf("goexif: %w", err)
	}
	if err != nil {
		log.Debugf("[Metadata] goexif: %v, keeping the fields read so far", err)
	}

	e := &r.EXIF
	setString(&e.Make, exifString(x, exif.Make))
	setString(&e.Model, exifString(x, exif.Model))
	setString(&e.LensModel, exifString(x, lensModel))
	setString(&e.Software, exifString(x, exif.Software))
	setString(&e.Artist, exifString(x, exif.Artist))
	setString(&e.Copyright, exifString(x, exif.Copyright))
	setString(&e.ImageDescription, exifString(x, exif.ImageDescription))
	setString(&e.DateTimeOriginal, exifString(x, exif.DateTimeOriginal))
	setString(&e.CreateDate, exifString(x, exif.DateTimeDigitized))
	setString(&e.ModifyDate, exifString(x, exif.DateTime))

	if v, ok := exifInt(x, exif.Orientation); ok {
		setString(&e.Orientation, orientationName(v))
	}

	// Exposure time is a rational; keep the "1/250" notation and the seconds.
	if num, den, ok := exifRat(x, exif.ExposureTime); ok {
		e.ExposureTime = formatExposure(num, den)
		e.exposureSeconds = float64(num) / float64(den)
	}
	if num, den, ok := exifRat(x, exif.FNumber); ok {
		e.FNumber = round(float64(num)/float64(den), 1)
	}
	if v, ok := exifInt(x, exif.ISOSpeedRatings); ok {
		e.ISO = v
	}
	if num, den, ok := exifRat(x, exif.FocalLength); ok {
		e.FocalLength = fmt.Sprintf("%.1f mm", float64(num)/float64(den))
	}
	if v, ok := exifInt(x, exif.FocalLengthIn35mmFilm); ok && v > 0 {
		e.FocalLengthIn35mmFormat = fmt.Sprintf("%d mm", v)
	}
	if v, ok := exifInt(x, exif.ExposureProgram); ok {
		setString(&e.ExposureProgram, lookup(exposurePrograms, v))
	}
	if v, ok := exifInt(x, exif.ExposureMode); ok {
		setString(&e.ExposureMode, lookup(exposureModes, v))
	}
	if v, ok := exifInt(x, exif.MeteringMode); ok {
		setString(&e.MeteringMode, lookup(meteringModes, v))
	}
	if v, ok := exifInt(x, exif.Flash); ok {
		e.Flash = flashDescription(v)
	}
	if v, ok := exifInt(x, exif.WhiteBalance); ok {
		setString(&e.WhiteBalance, lookup(whiteBalances, v))
	}
	if v, ok := exifInt(x, exif.SceneCaptureType); ok {
		setString(&e.SceneCaptureType, lookup(sceneCaptureTypes, v))
	}
	if num, den, ok := exifRat(x, exif.XResolution); ok {
		e.XResolution = round(float64(num)/float64(den), 2)
	}
	if num, den, ok := exifRat(x, exif.YResolution); ok {
		e.YResolution = round(float64(num)/float64(den), 2)
	}
	if v, ok := exifInt(x, exif.ResolutionUnit); ok {
		setString(&e.ResolutionUnit, lookup(resolutionUnits, v))
	}

	if lat, long, err := x.LatLong(); err == nil && !math.IsNaN(lat) && !math.IsNaN(long) {
		g := &r.GPS
		g.Latitude = round(lat, 6)
		g.Longitude = round(long, 6)
		g.present = true
		setString(&g.LatitudeRef, exifString(x, exif.GPSLatitudeRef))
		setString(&g.LongitudeRef, exifString(x, exif.GPSLongitudeRef))
		if num, den, ok := exifRat(x, exif.GPSAltitude); ok {
			g.Altitude = round(float64(num)/float64(den), 2)
			if ref, ok := exifInt(x, exif.GPSAltitudeRef); ok && ref == 1 {
				g.Altitude = -g.Altitude
			}
		}
	}

	return nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			return strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
	}
	return strings.TrimSpace(strings.Trim(tag.String(), `"`))
}

func exifInt(x *exif.Exif, name exif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func exifRat(x *exif.Exif, name exif.FieldName) (int64, int64, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal {
		return 0, 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

func formatExposure(num, den int64) string {
	if num <= 0 || den <= 0 {
		return "0"
	}
	return formatSeconds(float64(num) / float64(den))
}

// formatSeconds prints short exposures as 1/N when N is whole or the
// exposure is at most 1/4 s, and everything else as a decimal.
func formatSeconds(t float64) string {
	if t <= 0 {
		return "0"
	}
	if t >= 1 {
		return trimFloat(t)
	}
	n := 1 / t
	if t <= 0.25 || math.Abs(n-math.Round(n)) < 1e-6 {
		return fmt.Sprintf("1/%d", int64(math.Round(n)))
	}
	return trimFloat(t)
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func lookup(table map[int]string, v int) string {
	if s, ok := table[v]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", v)
}

var exposurePrograms = map[int]string{
	0: "Not Defined",
	1: "Manual",
	2: "Program AE",
	3: "Aperture-priority AE",
	4: "Shutter speed priority AE",
	5: "Creative (Slow speed)",
	6: "Action (High speed)",
	7: "Portrait",
	8: "Landscape",
}

var exposureModes = map[int]string{
	0: "Auto",
	1: "Manual",
	2: "Auto bracket",
}

var meteringModes = map[int]string{
	0:   "Unknown",
	1:   "Average",
	2:   "Center-weighted average",
	3:   "Spot",
	4:   "Multi-spot",
	5:   "Multi-segment",
	6:   "Partial",
	255: "Other",
}

var whiteBalances = map[int]string{
	0: "Auto",
	1: "Manual",
}

var sceneCaptureTypes = map[int]string{
	0: "Standard",
	1: "Landscape",
	2: "Portrait",
	3: "Night",
}

var resolutionUnits = map[int]string{
	1: "None",
	2: "inches",
	3: "cm",
}

func orientationName(v int) string {
	switch v {
	case 1:
		return "Horizontal (normal)"
	case 2:
		return "Mirror horizontal"
	case 3:
		return "Rotate 180"
	case 4:
		return "Mirror vertical"
	case 5:
		return "Mirror horizontal and rotate 270 CW"
	case 6:
		return "Rotate 90 CW"
	case 7:
		return "Mirror horizontal and rotate 90 CW"
	case 8:
		return "Rotate 270 CW"
	}
	return fmt.Sprintf("Unknown (%d)", v)
}

// flashDescription decodes the EXIF flash bit field (bit 0 fired, bits 3-4 mode).
func flashDescription(v int) string {
	fired := v&0x1 != 0
	mode := (v >> 3) & 0x3
	var parts []string
	switch {
	case v&0x20 != 0:
		return "No flash function"
	case fired:
		parts = append(parts, "Fired")
	default:
		parts = append(parts, "Did not fire")
	}
	switch mode {
	case 1:
		parts = append(parts, "Compulsory")
	case 2:
		parts = append(parts, "Off")
	case 3:
		parts = append(parts, "Auto")
	}
	if v&0x40 != 0 {
		parts = append(parts, "Red-eye reduction")
	}
	return strings.Join(parts, ", ")
}
