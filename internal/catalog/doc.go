// Package catalog fetches pages of downloadable products from the catalog
// service and maps them into model.Product values.
package catalog
