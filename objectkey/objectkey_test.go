package objectkey_test

import (
	"strings"
	"testing"

	"github.com/novaops/steptrack/objectkey"
)

func TestSpectraRawPrefix(t *testing.T) {
	got := objectkey.SpectraRawPrefix("N2023abc", "dp-001")
	want := "raw/spectra/N2023abc/dp-001/"
	if got != want {
		t.Errorf("SpectraRawPrefix = %q, want %q", got, want)
	}
}

func TestSpectraDerivedPrefix(t *testing.T) {
	got := objectkey.SpectraDerivedPrefix("N2023abc", "dp-001")
	want := "derived/spectra/N2023abc/dp-001/"
	if got != want {
		t.Errorf("SpectraDerivedPrefix = %q, want %q", got, want)
	}
}

func TestSpectraQuarantinePrefix(t *testing.T) {
	got := objectkey.SpectraQuarantinePrefix("N2023abc", "dp-001", "2026-03-01T12:00:00Z")
	want := "quarantine/spectra/N2023abc/dp-001/2026-03-01T12:00:00Z/"
	if got != want {
		t.Errorf("SpectraQuarantinePrefix = %q, want %q", got, want)
	}
}

func TestPhotometryUploadPrefix(t *testing.T) {
	got := objectkey.PhotometryUploadPrefix()
	want := "raw/photometry/uploads/"
	if got != want {
		t.Errorf("PhotometryUploadPrefix = %q, want %q", got, want)
	}
}

func TestPhotometryUploadKey(t *testing.T) {
	got := objectkey.PhotometryUploadKey("if-42", "batch.csv")
	want := "raw/photometry/uploads/if-42/original/batch.csv"
	if got != want {
		t.Errorf("PhotometryUploadKey = %q, want %q", got, want)
	}
}

func TestPhotometryUploadKey_TrimsLeadingSlash(t *testing.T) {
	got := objectkey.PhotometryUploadKey("if-42", "/batch.csv")
	want := "raw/photometry/uploads/if-42/original/batch.csv"
	if got != want {
		t.Errorf("PhotometryUploadKey = %q, want %q", got, want)
	}
}

func TestPhotometrySplitUploadKey(t *testing.T) {
	got := objectkey.PhotometrySplitUploadKey("if-42", "N2023abc", "batch.csv")
	want := "raw/photometry/uploads/if-42/split/N2023abc/batch.csv"
	if got != want {
		t.Errorf("PhotometrySplitUploadKey = %q, want %q", got, want)
	}
}

func TestPhotometryDerivedKey(t *testing.T) {
	got := objectkey.PhotometryDerivedKey("N2023abc")
	want := "derived/photometry/N2023abc/photometry_table.parquet"
	if got != want {
		t.Errorf("PhotometryDerivedKey = %q, want %q", got, want)
	}
}

func TestSplitKeysShareUploadPrefix(t *testing.T) {
	prefix := objectkey.PhotometryUploadPrefix()
	keys := []string{
		objectkey.PhotometryUploadKey("if-42", "batch.csv"),
		objectkey.PhotometrySplitUploadKey("if-42", "N2023abc", "batch.csv"),
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			t.Errorf("%q should fall under %q", k, prefix)
		}
	}
}
