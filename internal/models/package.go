// Package models holds the persisted and wire-facing data types shared by
// the download, matching and risk layers.
package models

// PackageBlob is the verified content of a downloaded key package as it is
// handed to the store: the decompressed export binary, the detached
// signature it was verified against and the server-supplied ETag.
type PackageBlob struct {
	Bin       []byte
	Signature []byte
	ETag      string
}

// DayPackage is a key package covering one full day for one country.
// Day is an ISO date string ("2006-01-02").
type DayPackage struct {
	Country   string
	Day       string
	Bin       []byte
	Signature []byte
	ETag      string
}

// HourPackage is a key package covering one hour of the current day.
type HourPackage struct {
	Country   string
	Day       string
	Hour      int
	Bin       []byte
	Signature []byte
	ETag      string
}
