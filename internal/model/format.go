package model

import "strings"

// File extensions understood by the extractor and loader.
const (
	ExtCSV      = "csv"
	ExtXLS      = "xls"
	ExtXLSX     = "xlsx"
	ExtGeoJSON  = "geojson"
	ExtJSON     = "json"
	ExtTopoJSON = "topojson"
	ExtSHP      = "shp"
	ExtGDB      = "gdb"
	ExtGPKG     = "gpkg"
)

// FileExt maps a declared catalog format to the file extension used on disk.
func FileExt(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "geodatabase":
		return ExtGDB
	case "geopackage":
		return ExtGPKG
	}
	return f
}

// IsSpreadsheet reports whether ext is a workbook format.
func IsSpreadsheet(ext string) bool {
	return ext == ExtXLS || ext == ExtXLSX
}

// IsContainer reports whether ext holds multiple layers.
func IsContainer(ext string) bool {
	return ext == ExtGDB || ext == ExtGPKG
}

// IsVector reports whether ext is a single-layer vector format.
func IsVector(ext string) bool {
	switch ext {
	case ExtGeoJSON, ExtJSON, ExtTopoJSON, ExtSHP:
		return true
	}
	return false
}
