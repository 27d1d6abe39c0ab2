package model

import "strings"

// Dataset is the catalog metadata the classifier needs about a dataset.
type Dataset struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Locations    []string   `json:"locations"` // ISO3 codes, upper case
	Archived     bool       `json:"archived"`
	Resources    []Resource `json:"resources,omitempty"`
}

// Resource identifies a single downloadable file of a dataset.
type Resource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	Size         int64  `json:"size"`
	ResourceType string `json:"resource_type"`
	PCoded       *bool  `json:"p_coded,omitempty"`
}

// IsAPI reports whether the resource is served by an API rather than an upload.
func (r Resource) IsAPI() bool {
	return strings.EqualFold(r.ResourceType, "api")
}

// Resource returns the resource with the given id, if the dataset has it.
func (d Dataset) Resource(id string) (Resource, bool) {
	for _, r := range d.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}

// Event asks for a single resource to be (re-)classified.
type Event struct {
	DatasetID  string `json:"dataset_id"`
	ResourceID string `json:"resource_id"`
}

// Valid reports whether both identifiers are present.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.DatasetID) != "" && strings.TrimSpace(e.ResourceID) != ""
}
