// Package platform contains OS integration glue: handing product pages to
// the system browser.
package platform
