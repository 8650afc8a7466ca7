package topicfy

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the EXIF, IPTC and XMP fields the scorer looks at:
// rights fields for stock detection, descriptive fields for classification hints.
type ImageMetadata struct {
	Copyright   string // EXIF Copyright / IPTC CopyrightNotice / XMP Rights
	Artist      string // EXIF Artist / IPTC Byline / XMP Creator
	Credit      string // IPTC Credit / IPTC Source
	Description string // EXIF ImageDescription / XMP Description
	Title       string // XMP Title
	Software    string // EXIF Software
}

// stockMetadataKeywords indicate a stock agency when found in rights fields.
var stockMetadataKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobe stock",
	"adobestock",
	"pond5",
	"vectorstock",
	"freepik",
}

// IsStockByMetadata reports whether the rights fields name a stock agency.
func IsStockByMetadata(meta *ImageMetadata) bool {
	if meta == nil {
		return false
	}
	for _, f := range []string{meta.Copyright, meta.Artist, meta.Credit} {
		if f == "" {
			continue
		}
		lower := strings.ToLower(f)
		for _, kw := range stockMetadataKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// HintText joins the descriptive fields into one lowercase string for the
// classification rules. Empty for nil metadata.
func (m *ImageMetadata) HintText() string {
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.Join([]string{m.Description, m.Title, m.Software}, " "))
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.IPTC: {
		"CopyrightNotice": true,
		"Credit":          true,
		"Byline":          true,
		"Source":          true,
	},
	imagemeta.EXIF: {
		"Copyright":        true,
		"Artist":           true,
		"ImageDescription": true,
		"Software":         true,
	},
	imagemeta.XMP: {
		"Rights":      true,
		"Creator":     true,
		"Description": true,
		"Title":       true,
	},
}

// ExtractImageMetadata parses EXIF/IPTC/XMP metadata from raw image bytes.
// Returns nil if the data is empty, cannot be parsed, or carries none of the
// wanted tags.
func ExtractImageMetadata(data []byte) *ImageMetadata {
	if len(data) == 0 {
		return nil
	}

	meta := &ImageMetadata{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			s := tagValueString(ti.Value)
			if s == "" {
				return nil
			}
			if setMetaField(meta, ti.Tag, s) {
				found = true
			}
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}
	return meta
}

// setMetaField stores s on the first empty field the tag maps to.
func setMetaField(meta *ImageMetadata, tag, s string) bool {
	var dst *string
	switch tag {
	case "Copyright", "CopyrightNotice", "Rights":
		dst = &meta.Copyright
	case "Artist", "Byline", "Creator":
		dst = &meta.Artist
	case "Credit", "Source":
		dst = &meta.Credit
	case "ImageDescription", "Description":
		dst = &meta.Description
	case "Title":
		dst = &meta.Title
	case "Software":
		dst = &meta.Software
	default:
		return false
	}
	if *dst == "" {
		*dst = s
	}
	return true
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
