// Package generic is the scraping engine shared by every site adapter. A
// site is described by a Profile of CSS selectors; the engine drives a
// browser page through the session manager, crawls paginated chapter
// listings, probes the first page for updates and scrolls chapter readers
// until their images have rendered.
//
// Everything that reads the document works on goquery snapshots of the
// rendered HTML, so extraction is tested against fixtures without a browser.
package generic
