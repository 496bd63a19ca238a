package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bep/imagemeta"
)

const (
	rdfNamespace   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	xmlnsNamespace = "xmlns"
)

// xmpPacket covers both the usual x:xmpmeta wrapper and a bare rdf:RDF root.
type xmpPacket struct {
	XMLName      xml.Name
	RDF          xmpRDF           `xml:"RDF"`
	Descriptions []xmpDescription `xml:"Description"`
}

type xmpRDF struct {
	Descriptions []xmpDescription `xml:"Description"`
}

type xmpDescription struct {
	Attrs      []xml.Attr    `xml:",any,attr"`
	Properties []xmpProperty `xml:",any"`
}

// xmpProperty is one child of rdf:Description: simple text, or an
// rdf:Alt, rdf:Seq or rdf:Bag container.
type xmpProperty struct {
	XMLName xml.Name
	Text    string    `xml:",chardata"`
	Alt     []xmpItem `xml:"Alt>li"`
	Seq     []xmpItem `xml:"Seq>li"`
	Bag     []xmpItem `xml:"Bag>li"`
}

type xmpItem struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// decodeXMPPacket reads a whole XMP packet and maps the properties found in
// every rdf:Description, attributes and child elements alike.
func decodeXMPPacket(r io.Reader, x *XMP) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var packet xmpPacket
	if err := xml.Unmarshal(raw, &packet); err != nil {
		return fmt.Errorf("xmp: %w", err)
	}

	descriptions := append(packet.RDF.Descriptions, packet.Descriptions...)
	for _, d := range descriptions {
		for _, attr := range d.Attrs {
			if attr.Name.Space == xmlnsNamespace || attr.Name.Space == rdfNamespace {
				continue
			}
			applyXMP(x, xmpTag(attr.Name, attr.Value))
		}
		for _, p := range d.Properties {
			if v := p.value(); v != nil {
				applyXMP(x, xmpTag(p.XMLName, v))
			}
		}
	}
	return nil
}

func xmpTag(name xml.Name, value any) imagemeta.TagInfo {
	return imagemeta.TagInfo{
		Source:    imagemeta.XMP,
		Tag:       upperFirst(name.Local),
		Namespace: name.Space,
		Value:     value,
	}
}

// value returns a string, a []string for multi-item lists, or nil.
// Language alternatives resolve to x-default, then to the first entry.
func (p xmpProperty) value() any {
	if len(p.Alt) > 0 {
		pick := ""
		for _, item := range p.Alt {
			v := strings.TrimSpace(item.Value)
			if v == "" {
				continue
			}
			if item.Lang == "x-default" {
				pick = v
				break
			}
			if pick == "" {
				pick = v
			}
		}
		if pick == "" {
			return nil
		}
		return pick
	}

	items := append(p.Seq, p.Bag...)
	if len(items) > 0 {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if v := strings.TrimSpace(item.Value); v != "" {
				out = append(out, v)
			}
		}
		switch len(out) {
		case 0:
			return nil
		case 1:
			return out[0]
		}
		return out
	}

	if s := strings.TrimSpace(p.Text); s != "" {
		return s
	}
	return nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
