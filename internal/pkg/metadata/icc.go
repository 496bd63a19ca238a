package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

const iccHeaderSize = 128

var iccMarker = []byte("ICC_PROFILE\x00")

var errNoICC = errors.New("no icc profile")

// jpegICCProfile reassembles the ICC profile spread over APP2 segments.
func jpegICCProfile(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNoICC
	}

	chunks := map[int][]byte{}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			break
		}
		marker := data[pos+1]
		// Start of scan: entropy coded data follows, no more metadata segments
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		if marker == 0xFF {
			pos++
			continue
		}
		size := int(binary.BigEndian.Uint16(data[pos+2:]))
		end := pos + 2 + size
		if size < 2 || end > len(data) {
			break
		}
		seg := data[pos+4 : end]
		if marker == 0xE2 && bytes.HasPrefix(seg, iccMarker) && len(seg) > len(iccMarker)+2 {
			seq := int(seg[len(iccMarker)])
			chunks[seq] = seg[len(iccMarker)+2:]
		}
		pos = end
	}

	if len(chunks) == 0 {
		return nil, errNoICC
	}
	seqs := make([]int, 0, len(chunks))
	for s := range chunks {
		seqs = append(seqs, s)
	}
	sort.Ints(seqs)

	var profile []byte
	for _, s := range seqs {
		profile = append(profile, chunks[s]...)
	}
	return profile, nil
}

// parseICC fills the profile header fields and the description tag.
func parseICC(profile []byte, out *ICCProfile) error {
	if len(profile) < iccHeaderSize {
		return fmt.Errorf("icc profile too short: %d bytes", len(profile))
	}
	be := binary.BigEndian
	if string(profile[36:40]) != "acsp" {
		return errors.New("icc profile signature missing")
	}

	out.ProfileSize = int(be.Uint32(profile[0:4]))
	setString(&out.ProfileCMMType, fourCC(profile[4:8]))
	out.ProfileVersion = fmt.Sprintf("%d.%d.%d", profile[8], profile[9]>>4, profile[9]&0x0F)
	setString(&out.ProfileClass, lookupString(iccClasses, string(profile[12:16])))
	setString(&out.ColorSpaceData, lookupString(iccColorSpaces, string(profile[16:20])))
	setString(&out.ProfileConnectionSpace, lookupString(iccColorSpaces, string(profile[20:24])))

	year, month, day := be.Uint16(profile[24:]), be.Uint16(profile[26:]), be.Uint16(profile[28:])
	if year > 0 {
		hour, minute, sec := be.Uint16(profile[30:]), be.Uint16(profile[32:]), be.Uint16(profile[34:])
		out.ProfileDateTime = fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d", year, month, day, hour, minute, sec)
	}
	setString(&out.PrimaryPlatform, lookupString(iccPlatforms, string(profile[40:44])))
	setString(&out.DeviceManufacturer, fourCC(profile[48:52]))
	intent := be.Uint32(profile[64:68])
	if name, ok := iccIntents[intent]; ok {
		out.RenderingIntent = name
	}

	if desc := iccDescription(profile); desc != "" {
		out.ProfileDescription = desc
	}
	return nil
}

func iccDescription(profile []byte) string {
	be := binary.BigEndian
	if len(profile) < iccHeaderSize+4 {
		return ""
	}
	count := int(be.Uint32(profile[iccHeaderSize:]))
	table := profile[iccHeaderSize+4:]
	for i := 0; i < count && (i+1)*12 <= len(table); i++ {
		entry := table[i*12:]
		if string(entry[0:4]) != "desc" {
			continue
		}
		off := int(be.Uint32(entry[4:]))
		size := int(be.Uint32(entry[8:]))
		if off < 0 || size < 12 || off+size > len(profile) {
			return ""
		}
		return decodeDescTag(profile[off : off+size])
	}
	return ""
}

func decodeDescTag(tag []byte) string {
	be := binary.BigEndian
	switch string(tag[0:4]) {
	case "desc":
		n := int(be.Uint32(tag[8:12]))
		if n <= 0 || 12+n > len(tag) {
			return ""
		}
		return strings.TrimRight(string(tag[12:12+n]), "\x00")
	case "mluc":
		if len(tag) < 28 {
			return ""
		}
		// First record wins; records are 12 bytes: lang, country, length, offset
		length := int(be.Uint32(tag[20:24]))
		off := int(be.Uint32(tag[24:28]))
		if off+length > len(tag) || length%2 != 0 {
			return ""
		}
		units := make([]uint16, length/2)
		for i := range units {
			units[i] = be.Uint16(tag[off+i*2:])
		}
		return strings.TrimRight(string(utf16.Decode(units)), "\x00")
	}
	return ""
}

func fourCC(b []byte) string {
	s := strings.TrimRight(string(b), "\x00 ")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			return ""
		}
	}
	return s
}

func lookupString(table map[string]string, key string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return fourCC([]byte(key))
}

var iccClasses = map[string]string{
	"scnr": "Input Device Profile",
	"mntr": "Display Device Profile",
	"prtr": "Output Device Profile",
	"link": "DeviceLink Profile",
	"spac": "ColorSpace Conversion Profile",
	"abst": "Abstract Profile",
	"nmcl": "NamedColor Profile",
}

var iccColorSpaces = map[string]string{
	"XYZ ": "XYZ",
	"Lab ": "Lab",
	"RGB ": "RGB",
	"GRAY": "Grayscale",
	"CMYK": "CMYK",
	"CMY ": "CMY",
	"YCbr": "YCbCr",
	"HSV ": "HSV",
}

var iccPlatforms = map[string]string{
	"APPL": "Apple Computer Inc.",
	"MSFT": "Microsoft Corporation",
	"SGI ": "Silicon Graphics Inc.",
	"SUNW": "Sun Microsystems Inc.",
}

var iccIntents = map[uint32]string{
	0: "Perceptual",
	1: "Media-Relative Colorimetric",
	2: "Saturation",
	3: "ICC-Absolute Colorimetric",
}
