package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bep/imagemeta"
)

// embeddedTags walks the EXIF, IPTC and XMP blocks with imagemeta.
//
// IPTC and XMP always come from here. EXIF fields are only copied when
// goexif failed (exifFallback), since goexif already handled the common case
// and maker notes. EXIF needs its own pass: with EXIF in the mask imagemeta
// claims the first APP1 for it and never reads an XMP APP1.
func embeddedTags(data []byte, format imagemeta.ImageFormat, r *Report, exifFallback bool) error {
	if format == 0 {
		return nil
	}

	var errs []error
	if exifFallback {
		if err := embeddedEXIF(data, format, r); err != nil {
			errs = append(errs, err)
		}
	}

	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.IPTC | imagemeta.XMP,
		HandleTag: func(ti imagemeta.TagInfo) error {
			if ti.Source == imagemeta.IPTC {
				applyIPTC(&r.IPTC, ti)
			}
			return nil
		},
		// the built-in handler skips dc:title and dc:description lang-alt lists
		HandleXMP: func(xr io.Reader) error {
			return decodeXMPPacket(xr, &r.XMP)
		},
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("imagemeta iptc/xmp: %w", err))
	}
	return errors.Join(errs...)
}

func embeddedEXIF(data []byte, format imagemeta.ImageFormat, r *Report) error {
	var tags imagemeta.Tags
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			// Skip the embedded thumbnail directory
			return !strings.HasPrefix(ti.Namespace, "IFD1")
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			tags.Add(ti)
			applyEXIF(&r.EXIF, ti)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("imagemeta exif: %w", err)
	}

	if !r.GPS.present {
		if lat, long, err := tags.GetLatLong(); err == nil && !(lat == 0 && long == 0) {
			r.GPS.Latitude = round(lat, 6)
			r.GPS.Longitude = round(long, 6)
			r.GPS.LatitudeRef = hemisphere(lat, "N", "S")
			r.GPS.LongitudeRef = hemisphere(long, "E", "W")
			r.GPS.present = true
		}
	}
	return nil
}

// imagemetaFormat maps a sniffed MIME type onto the containers imagemeta reads.
func imagemetaFormat(mime string) imagemeta.ImageFormat {
	switch mime {
	case "image/jpeg":
		return imagemeta.JPEG
	case "image/png":
		return imagemeta.PNG
	case "image/tiff":
		return imagemeta.TIFF
	case "image/webp":
		return imagemeta.WebP
	}
	return 0
}

func applyIPTC(p *IPTC, ti imagemeta.TagInfo) {
	name := strings.ReplaceAll(ti.Tag, "-", "")
	if name == "Keywords" {
		p.Keywords = appendUnique(p.Keywords, valueStrings(ti.Value)...)
		return
	}
	s := valueString(ti.Value)
	switch name {
	case "ObjectName":
		setString(&p.ObjectName, s)
	case "CaptionAbstract", "Caption":
		setString(&p.Caption, s)
	case "Byline":
		setString(&p.Byline, s)
	case "BylineTitle":
		setString(&p.BylineTitle, s)
	case "Credit":
		setString(&p.Credit, s)
	case "Source":
		setString(&p.Source, s)
	case "CopyrightNotice":
		setString(&p.CopyrightNotice, s)
	case "City":
		setString(&p.City, s)
	case "ProvinceState":
		setString(&p.ProvinceState, s)
	case "CountryPrimaryLocationName", "Country":
		setString(&p.Country, s)
	case "DateCreated":
		setString(&p.DateCreated, s)
	}
}

func applyXMP(x *XMP, ti imagemeta.TagInfo) {
	switch ti.Tag {
	case "Subject":
		x.Subject = appendUnique(x.Subject, valueStrings(ti.Value)...)
	case "Marked":
		switch v := ti.Value.(type) {
		case bool:
			x.Marked = v
		case string:
			x.Marked, _ = strconv.ParseBool(v)
		}
	case "Rating":
		if f, ok := valueFloat(ti.Value); ok {
			x.Rating = int(f)
		}
	case "Title":
		setString(&x.Title, valueString(ti.Value))
	case "Description":
		setString(&x.Description, valueString(ti.Value))
	case "Creator":
		setString(&x.Creator, strings.Join(valueStrings(ti.Value), "; "))
	case "Rights":
		setString(&x.Rights, valueString(ti.Value))
	case "Label":
		setString(&x.Label, valueString(ti.Value))
	case "CreatorTool":
		setString(&x.CreatorTool, valueString(ti.Value))
	case "WebStatement":
		setString(&x.WebStatement, valueString(ti.Value))
	case "UsageTerms":
		setString(&x.UsageTerms, valueString(ti.Value))
	case "License":
		setString(&x.License, valueString(ti.Value))
	}
}

// applyEXIF copies the subset of EXIF fields needed when goexif could not
// read the container, e.g. WebP and PNG eXIf chunks.
func applyEXIF(e *EXIF, ti imagemeta.TagInfo) {
	switch ti.Tag {
	case "Make":
		setString(&e.Make, valueString(ti.Value))
	case "Model":
		setString(&e.Model, valueString(ti.Value))
	case "LensModel":
		setString(&e.LensModel, valueString(ti.Value))
	case "Software":
		setString(&e.Software, valueString(ti.Value))
	case "Artist":
		setString(&e.Artist, valueString(ti.Value))
	case "Copyright":
		setString(&e.Copyright, valueString(ti.Value))
	case "ImageDescription":
		setString(&e.ImageDescription, valueString(ti.Value))
	case "DateTimeOriginal":
		setString(&e.DateTimeOriginal, valueString(ti.Value))
	case "DateTimeDigitized":
		setString(&e.CreateDate, valueString(ti.Value))
	case "DateTime":
		setString(&e.ModifyDate, valueString(ti.Value))
	case "Orientation":
		if f, ok := valueFloat(ti.Value); ok {
			e.Orientation = orientationName(int(f))
		}
	case "ExposureTime":
		if f, ok := valueFloat(ti.Value); ok && f > 0 {
			e.exposureSeconds = f
			e.ExposureTime = formatSeconds(f)
		}
	case "FNumber":
		if f, ok := valueFloat(ti.Value); ok {
			e.FNumber = round(f, 1)
		}
	case "ISOSpeedRatings", "ISO", "PhotographicSensitivity":
		if f, ok := valueFloat(ti.Value); ok {
			e.ISO = int(f)
		}
	case "FocalLength":
		if f, ok := valueFloat(ti.Value); ok {
			e.FocalLength = fmt.Sprintf("%.1f mm", f)
		}
	case "FocalLengthIn35mmFilm":
		if f, ok := valueFloat(ti.Value); ok && f > 0 {
			e.FocalLengthIn35mmFormat = fmt.Sprintf("%d mm", int(f))
		}
	case "ExposureProgram":
		if f, ok := valueFloat(ti.Value); ok {
			e.ExposureProgram = lookup(exposurePrograms, int(f))
		}
	case "ExposureMode":
		if f, ok := valueFloat(ti.Value); ok {
			e.ExposureMode = lookup(exposureModes, int(f))
		}
	case "MeteringMode":
		if f, ok := valueFloat(ti.Value); ok {
			e.MeteringMode = lookup(meteringModes, int(f))
		}
	case "Flash":
		if f, ok := valueFloat(ti.Value); ok {
			e.Flash = flashDescription(int(f))
		}
	case "WhiteBalance":
		if f, ok := valueFloat(ti.Value); ok {
			e.WhiteBalance = lookup(whiteBalances, int(f))
		}
	case "SceneCaptureType":
		if f, ok := valueFloat(ti.Value); ok {
			e.SceneCaptureType = lookup(sceneCaptureTypes, int(f))
		}
	case "XResolution":
		if f, ok := valueFloat(ti.Value); ok {
			e.XResolution = round(f, 2)
		}
	case "YResolution":
		if f, ok := valueFloat(ti.Value); ok {
			e.YResolution = round(f, 2)
		}
	case "ResolutionUnit":
		if f, ok := valueFloat(ti.Value); ok {
			e.ResolutionUnit = lookup(resolutionUnits, int(f))
		}
	}
}

// valueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.TrimRight(val, "\x00"))
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
		return ""
	case []byte:
		return strings.TrimSpace(strings.TrimRight(string(val), "\x00"))
	case fmt.Stringer:
		return val.String()
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func valueStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := valueString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueString(v); s != "" {
		return []string{s}
	}
	return nil
}

// valueFloat converts the numeric shapes imagemeta hands out.
func valueFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return f, true
		}
		if num, den, ok := strings.Cut(val, "/"); ok {
			n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
			d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
			if err1 == nil && err2 == nil && d != 0 {
				return n / d, true
			}
		}
	case interface{ Float64() float64 }:
		return val.Float64(), true
	case []any:
		if len(val) > 0 {
			return valueFloat(val[0])
		}
	}
	return 0, false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, have := range dst {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return neg
	}
	return pos
}
