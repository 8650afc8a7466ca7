package topicfy

import "testing"

func TestIsStockByMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta *ImageMetadata
		want bool
	}{
		{"nil metadata", nil, false},
		{"empty metadata", &ImageMetadata{}, false},
		{"shutterstock copyright", &ImageMetadata{Copyright: "Copyright Shutterstock Inc."}, true},
		{"getty credit", &ImageMetadata{Credit: "Getty Images"}, true},
		{"istock artist", &ImageMetadata{Artist: "iStockPhoto.com/photographer"}, true},
		{"studio copyright", &ImageMetadata{Copyright: "© MAPPA / Studio"}, false},
		{"stock word only in description", &ImageMetadata{Description: "not from shutterstock"}, false},
	}
	for _, tt := range tests {
		if got := IsStockByMetadata(tt.meta); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestImageMetadata_HintText(t *testing.T) {
	t.Parallel()

	var nilMeta *ImageMetadata
	if nilMeta.HintText() != "" {
		t.Error("nil metadata should have empty hints")
	}
	m := &ImageMetadata{Description: "Key Visual", Title: "Teaser", Software: "Photoshop"}
	if got := m.HintText(); got != "key visual teaser photoshop" {
		t.Errorf("HintText = %q", got)
	}
}

func TestExtractImageMetadata_NilAndEmpty(t *testing.T) {
	t.Parallel()

	if ExtractImageMetadata(nil) != nil {
		t.Error("nil input should return nil")
	}
	if ExtractImageMetadata([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11}) != nil {
		t.Error("garbage input should return nil")
	}
}

func TestSetMetaField_FirstValueWins(t *testing.T) {
	t.Parallel()

	m := &ImageMetadata{}
	setMetaField(m, "Copyright", "first")
	setMetaField(m, "Rights", "second")
	if m.Copyright != "first" {
		t.Errorf("Copyright = %q, want first", m.Copyright)
	}
	if setMetaField(m, "Orientation", "1") {
		t.Error("unknown tag should not be stored")
	}
}
