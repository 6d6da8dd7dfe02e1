// Package objectkey builds the canonical object-store keys and prefixes
// for workflow data artifacts. It performs no I/O and embeds no workflow
// logic; centralizing key construction keeps the bucket layout stable as
// workflows evolve.
//
// Layout:
//
//	raw/spectra/<nova_id>/<data_product_id>/
//	quarantine/spectra/<nova_id>/<data_product_id>/<timestamp>/
//	raw/photometry/uploads/<ingest_file_id>/original/<filename>
//	raw/photometry/uploads/<ingest_file_id>/split/<nova_id>/<filename>
//	derived/photometry/<nova_id>/photometry_table.parquet
package objectkey

import "strings"

// join concatenates the non-empty parts with "/" after trimming any
// leading or trailing slashes from each part.
func join(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}

// SpectraRawPrefix is the prefix for raw spectra artifacts of one data
// product.
func SpectraRawPrefix(novaID, dataProductID string) string {
	return join("raw", "spectra", novaID, dataProductID) + "/"
}

// SpectraDerivedPrefix is the prefix for derived spectra artifacts.
func SpectraDerivedPrefix(novaID, dataProductID string) string {
	return join("derived", "spectra", novaID, dataProductID) + "/"
}

// SpectraQuarantinePrefix is the prefix for quarantined spectra artifacts,
// timestamped so repeated quarantines of the same product never collide.
func SpectraQuarantinePrefix(novaID, dataProductID, timestampISO string) string {
	return join("quarantine", "spectra", novaID, dataProductID, timestampISO) + "/"
}

// PhotometryUploadPrefix is the prefix under which all photometry uploads
// land.
func PhotometryUploadPrefix() string {
	return join("raw", "photometry", "uploads") + "/"
}

// PhotometryUploadKey is the key for an original uploaded photometry file.
func PhotometryUploadKey(ingestFileID, filename string) string {
	return "raw/photometry/uploads/" + ingestFileID + "/original/" + strings.TrimLeft(filename, "/")
}

// PhotometrySplitUploadKey is the key for a per-nova split artifact of an
// uploaded photometry file.
func PhotometrySplitUploadKey(ingestFileID, novaID, filename string) string {
	return "raw/photometry/uploads/" + ingestFileID + "/split/" + novaID + "/" + strings.TrimLeft(filename, "/")
}

// PhotometryDerivedKey is the key for the derived photometry table of one
// nova.
func PhotometryDerivedKey(novaID string) string {
	return join("derived", "photometry", novaID, "photometry_table.parquet")
}
