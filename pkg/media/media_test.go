package media

import "testing"

func TestSniffImage(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a"), "image/gif"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0x57, 0x45, 0x42, 0x50}, "image/webp"},
		{"unknown", []byte{0x00, 0x01, 0x02}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffImage(tc.data); got != tc.want {
				t.Errorf("SniffImage(%s) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	original := []byte{1, 2, 3, 4, 5}
	url := CreateDataURL("image/png", original)

	mime, data, err := SplitDataURL(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	if string(data) != string(original) {
		t.Errorf("data = %v, want %v", data, original)
	}
}

func TestSplitDataURL_RejectsNonBase64(t *testing.T) {
	_, _, err := SplitDataURL("data:text/plain,hello")
	if err == nil {
		t.Error("expected an error for a non-base64 data URL")
	}
}

func TestSplitDataURL_RejectsMissingPrefix(t *testing.T) {
	_, _, err := SplitDataURL("not-a-data-url")
	if err == nil {
		t.Error("expected an error for a string without the data: prefix")
	}
}
