package model

// Product is an immutable catalog entry. Name is a display key and is not
// guaranteed to be unique; DownloadLink is passed verbatim to the backend.
type Product struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	DownloadLink string `json:"download_link"`
}
