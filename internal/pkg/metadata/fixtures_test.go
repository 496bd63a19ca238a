package metadata

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

type ifdEntry struct {
	tag   uint16
	ascii string // type 2
	short uint16 // type 3, used when ascii is empty
}

// buildTIFF lays out a little-endian TIFF block with a single IFD0.
func buildTIFF(entries []ifdEntry) []byte {
	le := binary.LittleEndian
	ifdSize := 2 + 12*len(entries) + 4
	dataOff := 8 + ifdSize

	var head, data bytes.Buffer
	head.WriteString("II")
	_ = binary.Write(&head, le, uint16(42))
	_ = binary.Write(&head, le, uint32(8))
	_ = binary.Write(&head, le, uint16(len(entries)))

	for _, e := range entries {
		_ = binary.Write(&head, le, e.tag)
		if e.ascii != "" {
			v := append([]byte(e.ascii), 0)
			_ = binary.Write(&head, le, uint16(2))
			_ = binary.Write(&head, le, uint32(len(v)))
			if len(v) <= 4 {
				inline := make([]byte, 4)
				copy(inline, v)
				head.Write(inline)
				continue
			}
			_ = binary.Write(&head, le, uint32(dataOff+data.Len()))
			data.Write(v)
			continue
		}
		_ = binary.Write(&head, le, uint16(3))
		_ = binary.Write(&head, le, uint32(1))
		_ = binary.Write(&head, le, e.short)
		_ = binary.Write(&head, le, uint16(0))
	}
	_ = binary.Write(&head, le, uint32(0))

	return append(head.Bytes(), data.Bytes()...)
}

// insertSegment places an APPn segment right after the JPEG SOI marker.
func insertSegment(t *testing.T, jpg []byte, marker byte, payload []byte) []byte {
	t.Helper()
	require.True(t, len(jpg) > 2 && jpg[0] == 0xFF && jpg[1] == 0xD8, "not a jpeg")
	require.Less(t, len(payload)+2, 0xFFFF)

	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := make([]byte, 0, len(jpg)+len(seg))
	out = append(out, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

func plainJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func plainPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// canonJPEG is a small JPEG whose IFD0 says Make=Canon, Model=EOS 5D.
func canonJPEG(t *testing.T) []byte {
	t.Helper()
	tiff := buildTIFF([]ifdEntry{
		{tag: 0x010F, ascii: "Canon"},
		{tag: 0x0110, ascii: "EOS 5D"},
		{tag: 0x0112, short: 1},
	})
	payload := append([]byte("Exif\x00\x00"), tiff...)
	return insertSegment(t, plainJPEG(t, 32, 24), 0xE1, payload)
}

const xmpHeader = "http://ns.adobe.com/xap/1.0/\x00"

const harbourXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:xmpRights="http://ns.adobe.com/xap/1.0/rights/"
    xmp:Rating="4"
    xmp:CreatorTool="darktable 4.6"
    xmpRights:Marked="True">
   <dc:title>
    <rdf:Alt>
     <rdf:li xml:lang="de">Hafen am Abend</rdf:li>
     <rdf:li xml:lang="x-default">Harbour at dusk</rdf:li>
    </rdf:Alt>
   </dc:title>
   <dc:description>
    <rdf:Alt>
     <rdf:li xml:lang="x-default">Fishing boats after sunset</rdf:li>
    </rdf:Alt>
   </dc:description>
   <dc:creator>
    <rdf:Seq>
     <rdf:li>Jane Doe</rdf:li>
     <rdf:li>John Roe</rdf:li>
    </rdf:Seq>
   </dc:creator>
   <dc:subject>
    <rdf:Bag>
     <rdf:li>harbour</rdf:li>
     <rdf:li>boats</rdf:li>
    </rdf:Bag>
   </dc:subject>
   <xmpRights:WebStatement>https://example.com/license</xmpRights:WebStatement>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// xmpJPEG is a JPEG whose only metadata is an XMP APP1 segment.
func xmpJPEG(t *testing.T) []byte {
	t.Helper()
	return insertSegment(t, plainJPEG(t, 16, 16), 0xE1, []byte(xmpHeader+harbourXMP))
}

type iimRecord struct {
	dataset byte
	value   string
}

// iptcPayload builds an APP13 Photoshop block holding application records (2:xx).
func iptcPayload(records []iimRecord) []byte {
	var iim bytes.Buffer
	for _, r := range records {
		iim.Write([]byte{0x1C, 2, r.dataset})
		_ = binary.Write(&iim, binary.BigEndian, uint16(len(r.value)))
		iim.WriteString(r.value)
	}

	var out bytes.Buffer
	out.WriteString("Photoshop 3.0\x00")
	out.WriteString("8BIM")
	_ = binary.Write(&out, binary.BigEndian, uint16(0x0404))
	out.Write([]byte{0, 0}) // empty pascal name, padded
	_ = binary.Write(&out, binary.BigEndian, uint32(iim.Len()))
	out.Write(iim.Bytes())
	if iim.Len()%2 == 1 {
		out.WriteByte(0)
	}
	return out.Bytes()
}

func iptcJPEG(t *testing.T) []byte {
	t.Helper()
	return insertSegment(t, plainJPEG(t, 16, 16), 0xED, iptcPayload([]iimRecord{
		{5, "Harbour at dusk"},
		{25, "boats"},
		{25, "sunset"},
		{80, "Jane Doe"},
		{101, "Norway"},
	}))
}

// exifPNG is a PNG with an eXIf chunk right after IHDR.
func exifPNG(t *testing.T) []byte {
	t.Helper()
	pngData := plainPNG(t, 4, 4)
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	require.Equal(t, "IHDR", string(pngData[12:16]))

	tiff := buildTIFF([]ifdEntry{
		{tag: 0x010F, ascii: "Canon"},
		{tag: 0x0110, ascii: "EOS 5D"},
		{tag: 0x0112, short: 6},
	})
	var chunk bytes.Buffer
	_ = binary.Write(&chunk, binary.BigEndian, uint32(len(tiff)))
	body := append([]byte("eXIf"), tiff...)
	chunk.Write(body)
	_ = binary.Write(&chunk, binary.BigEndian, crc32.ChecksumIEEE(body))

	out := append([]byte{}, pngData[:ihdrEnd]...)
	out = append(out, chunk.Bytes()...)
	return append(out, pngData[ihdrEnd:]...)
}
