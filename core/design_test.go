package core

import "testing"

func TestDisplayImage_PrefersThumbnail(t *testing.T) {
	d := &Design{
		ImageURL:     "https://cdn.example.com/full.png",
		ThumbnailURL: "https://cdn.example.com/thumb.png",
	}
	if got := d.DisplayImage(); got != "https://cdn.example.com/thumb.png" {
		t.Errorf("DisplayImage() = %q, want thumbnail", got)
	}
}

func TestDisplayImage_FallsBackToPrimary(t *testing.T) {
	d := &Design{
		ImageURL: "https://cdn.example.com/full.png",
	}
	if got := d.DisplayImage(); got != "https://cdn.example.com/full.png" {
		t.Errorf("DisplayImage() = %q, want primary image", got)
	}
}
