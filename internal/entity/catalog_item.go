package entity

// CatalogItem is a resolved record from the external metadata provider.
// Values are treated as immutable once returned.
type CatalogItem struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	PublishDate string `json:"publish_date,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
}
